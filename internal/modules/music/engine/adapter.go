package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/nozuki/melobot/internal/modules/music/domain"
	"github.com/nozuki/melobot/internal/modules/music/session"
)

// playTimeout bounds a single playback attempt, including the voice join and
// track load. A timed-out attempt is reported as a failure; the engine may
// still finish it asynchronously, we just stop waiting.
const playTimeout = 15 * time.Second

// User-facing failure messages.
const (
	msgNothingPlaying = "Nothing is playing"
	msgNothingPaused  = "Nothing is paused"
	msgAlreadyPaused  = "Playback is already paused"
	msgNoNextSong     = "No next song in queue"
	msgNoPreviousSong = "No previous song"
	msgNotConnected   = "Not connected to a voice channel"
	msgEngineNotReady = "The playback engine is not ready yet, try again in a moment"
)

// guildState is the adapter's view of one guild: the live queue and the
// voice connection status.
type guildState struct {
	queue          *domain.Queue
	connected      bool
	voiceChannelID snowflake.ID
}

// Adapter presents a uniform, exception-free interface over the playback
// engine. Every operation returns a Result (or a total read snapshot); engine
// errors never propagate past this type.
type Adapter struct {
	engine   *Engine
	sessions *session.Store

	mu     sync.Mutex
	guilds map[snowflake.ID]*guildState
}

// NewAdapter creates an Adapter on top of an engine lifecycle and the session
// store.
func NewAdapter(eng *Engine, sessions *session.Store) *Adapter {
	return &Adapter{
		engine:   eng,
		sessions: sessions,
		guilds:   make(map[snowflake.ID]*guildState),
	}
}

// Engine returns the underlying lifecycle, for status reporting.
func (a *Adapter) Engine() *Engine {
	return a.engine
}

// Play queues or starts a track. If the guild already has a non-empty queue
// the track is appended without interrupting playback; otherwise the bot
// joins the voice channel, applies the session volume, and starts playing.
func (a *Adapter) Play(
	ctx context.Context,
	guildID, voiceChannelID snowflake.ID,
	track domain.Track,
) Result {
	sess := a.sessions.Get(guildID)

	a.mu.Lock()
	if g, ok := a.guilds[guildID]; ok && !g.queue.IsEmpty() {
		g.queue.Append(track)
		a.mu.Unlock()
		return Result{
			Success:      true,
			Message:      "Added to queue: " + track.Title,
			Track:        &track,
			AddedToQueue: true,
		}
	}
	a.mu.Unlock()

	backend, err := a.engine.Acquire()
	if err != nil {
		slog.Error("play rejected, engine unavailable", "guild", guildID, "error", err)
		return failure(msgEngineNotReady)
	}

	ctx, cancel := context.WithTimeout(ctx, playTimeout)
	defer cancel()

	if err := backend.Join(ctx, guildID, voiceChannelID); err != nil {
		slog.Error("voice join failed", "guild", guildID, "error", err)
		return failure(playFailureMessage(err))
	}
	if err := backend.SetVolume(ctx, guildID, sess.Volume); err != nil {
		slog.Warn("failed to apply session volume", "guild", guildID, "error", err)
	}
	if err := backend.Play(ctx, guildID, track); err != nil {
		slog.Error("playback start failed", "guild", guildID, "track", track.Title, "error", err)
		return failure(playFailureMessage(err))
	}

	a.mu.Lock()
	g := a.ensureGuild(guildID)
	g.queue.Clear()
	g.queue.Append(track)
	g.connected = true
	g.voiceChannelID = voiceChannelID
	a.mu.Unlock()

	return Result{
		Success: true,
		Message: "Now playing: " + track.Title,
		Track:   &track,
	}
}

// Pause pauses playback. Pausing an already-paused queue fails instead of
// forwarding a no-op to the engine.
func (a *Adapter) Pause(ctx context.Context, guildID snowflake.ID) Result {
	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok || g.queue.Current() == nil {
		a.mu.Unlock()
		return failure(msgNothingPlaying)
	}
	if g.queue.Paused() {
		a.mu.Unlock()
		return failure(msgAlreadyPaused)
	}
	a.mu.Unlock()

	backend, err := a.engine.Acquire()
	if err != nil {
		return failure(msgEngineNotReady)
	}
	if err := backend.SetPaused(ctx, guildID, true); err != nil {
		slog.Error("pause failed", "guild", guildID, "error", err)
		return failure("Unable to pause playback")
	}

	a.mu.Lock()
	if g, ok := a.guilds[guildID]; ok {
		g.queue.SetPaused(true)
	}
	a.mu.Unlock()

	return success("Paused")
}

// Resume resumes a paused queue. Resuming a queue that is not paused fails.
func (a *Adapter) Resume(ctx context.Context, guildID snowflake.ID) Result {
	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok || g.queue.Current() == nil || !g.queue.Paused() {
		a.mu.Unlock()
		return failure(msgNothingPaused)
	}
	a.mu.Unlock()

	backend, err := a.engine.Acquire()
	if err != nil {
		return failure(msgEngineNotReady)
	}
	if err := backend.SetPaused(ctx, guildID, false); err != nil {
		slog.Error("resume failed", "guild", guildID, "error", err)
		return failure("Unable to resume playback")
	}

	a.mu.Lock()
	if g, ok := a.guilds[guildID]; ok {
		g.queue.SetPaused(false)
	}
	a.mu.Unlock()

	return success("Resumed")
}

// Skip advances to the next track. Fails when no track follows the current
// one so a skip can never empty the queue unexpectedly.
func (a *Adapter) Skip(ctx context.Context, guildID snowflake.ID) Result {
	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok {
		a.mu.Unlock()
		return failure(msgNoNextSong)
	}
	next := g.queue.PeekNext()
	if next == nil {
		a.mu.Unlock()
		return failure(msgNoNextSong)
	}
	a.mu.Unlock()

	result := a.playCurrent(ctx, guildID, *next, "Skipped to next song")
	if !result.Success {
		return result
	}

	// Move the cursor only now that the engine accepted the track, so a
	// failed skip leaves the reported state matching what is audible.
	a.mu.Lock()
	if g, ok := a.guilds[guildID]; ok {
		g.queue.Skip()
		g.queue.SetPaused(false)
	}
	a.mu.Unlock()
	return result
}

// Previous steps back to the previously played track.
func (a *Adapter) Previous(ctx context.Context, guildID snowflake.ID) Result {
	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok {
		a.mu.Unlock()
		return failure(msgNoPreviousSong)
	}
	prev := g.queue.PeekPrevious()
	if prev == nil {
		a.mu.Unlock()
		return failure(msgNoPreviousSong)
	}
	a.mu.Unlock()

	result := a.playCurrent(ctx, guildID, *prev, "Playing previous song")
	if !result.Success {
		return result
	}

	a.mu.Lock()
	if g, ok := a.guilds[guildID]; ok {
		g.queue.Previous()
		g.queue.SetPaused(false)
	}
	a.mu.Unlock()
	return result
}

// Stop clears the guild's queue and halts playback. The queue is cleared even
// if the engine stop call fails.
func (a *Adapter) Stop(ctx context.Context, guildID snowflake.ID) Result {
	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok || g.queue.IsEmpty() {
		a.mu.Unlock()
		return failure(msgNothingPlaying)
	}
	g.queue.Clear()
	a.mu.Unlock()

	if backend, ok := a.engine.Current(); ok {
		if err := backend.Stop(ctx, guildID); err != nil {
			slog.Warn("engine stop failed after queue clear", "guild", guildID, "error", err)
		}
	}

	return success("Stopped")
}

// Join connects the bot to a voice channel without starting playback.
func (a *Adapter) Join(ctx context.Context, guildID, voiceChannelID snowflake.ID) Result {
	a.mu.Lock()
	if g, ok := a.guilds[guildID]; ok && g.connected {
		a.mu.Unlock()
		return success("Already connected to the voice channel")
	}
	a.mu.Unlock()

	backend, err := a.engine.Acquire()
	if err != nil {
		return failure(msgEngineNotReady)
	}

	ctx, cancel := context.WithTimeout(ctx, playTimeout)
	defer cancel()
	if err := backend.Join(ctx, guildID, voiceChannelID); err != nil {
		slog.Error("voice join failed", "guild", guildID, "error", err)
		return failure("Unable to join the voice channel")
	}

	a.mu.Lock()
	g := a.ensureGuild(guildID)
	g.connected = true
	g.voiceChannelID = voiceChannelID
	a.mu.Unlock()

	return success("Joined the voice channel")
}

// Leave stops playback and disconnects from the voice channel.
func (a *Adapter) Leave(ctx context.Context, guildID snowflake.ID) Result {
	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok || !g.connected {
		a.mu.Unlock()
		return failure(msgNotConnected)
	}
	delete(a.guilds, guildID)
	a.mu.Unlock()

	if backend, ok := a.engine.Current(); ok {
		if err := backend.Leave(ctx, guildID); err != nil {
			slog.Warn("voice leave failed", "guild", guildID, "error", err)
		}
	}

	return success("Left voice channel")
}

// SetVolume clamps the level to [0,100] and stores it in the session before
// touching the engine, so the value takes effect on the next play even when
// no queue is active. The session is never rolled back on engine failure.
func (a *Adapter) SetVolume(ctx context.Context, guildID snowflake.ID, level int) Result {
	volume := clampVolume(level)
	a.sessions.SetVolume(guildID, volume)

	a.mu.Lock()
	g, ok := a.guilds[guildID]
	active := ok && !g.queue.IsEmpty()
	a.mu.Unlock()

	if active {
		backend, err := a.engine.Acquire()
		if err != nil {
			return Result{Message: msgEngineNotReady, Volume: volume}
		}
		if err := backend.SetVolume(ctx, guildID, volume); err != nil {
			slog.Error("volume update failed", "guild", guildID, "error", err)
			return Result{Message: "Unable to set volume", Volume: volume}
		}
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Volume set to %d%%", volume),
		Volume:  volume,
	}
}

// SetRepeat stores the repeat mode for the guild.
func (a *Adapter) SetRepeat(guildID snowflake.ID, mode domain.RepeatMode) Result {
	a.sessions.SetRepeat(guildID, mode)
	return success("Repeat mode set to " + mode.String())
}

// CycleRepeat advances the repeat mode none -> track -> queue -> none.
func (a *Adapter) CycleRepeat(guildID snowflake.ID) Result {
	mode := a.sessions.Get(guildID).Repeat.Next()
	a.sessions.SetRepeat(guildID, mode)
	return success("Repeat mode set to " + mode.String())
}

// NowPlaying returns a total snapshot of the guild's playback state. Reads
// have no side effects beyond lazily creating the session defaults.
func (a *Adapter) NowPlaying(guildID snowflake.ID) NowPlayingInfo {
	sess := a.sessions.Get(guildID)
	info := NowPlayingInfo{Volume: sess.Volume, Repeat: sess.Repeat}

	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.guilds[guildID]
	if !ok {
		return info
	}
	current := g.queue.Current()
	if current == nil {
		return info
	}

	info.Track = current
	info.IsPlaying = !g.queue.Paused()
	info.QueueLength = g.queue.Len()
	return info
}

// View returns the guild's queue projection, recomputed per call.
func (a *Adapter) View(guildID snowflake.ID) QueueView {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.guilds[guildID]
	if !ok || g.queue.IsEmpty() {
		return QueueView{Upcoming: []domain.Track{}}
	}
	return QueueView{
		Current:  g.queue.Current(),
		Upcoming: g.queue.Upcoming(),
		Length:   g.queue.Len(),
	}
}

// HandleTrackEnd advances the queue after the engine finishes a track.
// Stop- and replace-initiated ends are ignored; those were issued by the
// adapter itself.
func (a *Adapter) HandleTrackEnd(guildID snowflake.ID, finished bool) {
	if !finished {
		return
	}

	sess := a.sessions.Get(guildID)

	a.mu.Lock()
	g, ok := a.guilds[guildID]
	if !ok || g.queue.IsEmpty() {
		a.mu.Unlock()
		return
	}
	next := g.queue.Advance(sess.Repeat)
	if next == nil {
		g.queue.Clear()
		a.mu.Unlock()
		slog.Info("queue finished", "guild", guildID)
		return
	}
	a.mu.Unlock()

	backend, ok := a.engine.Current()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()
	if err := backend.Play(ctx, guildID, *next); err != nil {
		slog.Error("failed to start next track", "guild", guildID, "track", next.Title, "error", err)
	}
}

// playCurrent starts one track on the engine (skip and previous paths).
// Callers commit their queue cursor move only on success.
func (a *Adapter) playCurrent(
	ctx context.Context,
	guildID snowflake.ID,
	track domain.Track,
	message string,
) Result {
	backend, err := a.engine.Acquire()
	if err != nil {
		return failure(msgEngineNotReady)
	}

	ctx, cancel := context.WithTimeout(ctx, playTimeout)
	defer cancel()
	if err := backend.Play(ctx, guildID, track); err != nil {
		slog.Error("playback start failed", "guild", guildID, "track", track.Title, "error", err)
		return failure(playFailureMessage(err))
	}

	return Result{Success: true, Message: message, Track: &track}
}

// ensureGuild returns the guild state, creating it if absent.
// Callers must hold a.mu.
func (a *Adapter) ensureGuild(guildID snowflake.ID) *guildState {
	g, ok := a.guilds[guildID]
	if !ok {
		g = &guildState{queue: domain.NewQueue()}
		a.guilds[guildID] = g
	}
	return g
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

// playFailureMessage turns an engine error into a user-facing message. The
// blocked-stream match is a best-effort UX hint, not a classification: it
// keys on substrings of a third-party error.
func playFailureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timed out while starting playback, try again"
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "sign in") ||
		strings.Contains(lower, "not a bot") ||
		strings.Contains(lower, "blocked") {
		return "YouTube blocked the stream, try again later or use a direct link"
	}

	return "Error playing track: " + err.Error()
}
