package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/nozuki/melobot/internal/modules/music/domain"
)

// LavalinkConfig holds the node connection settings.
type LavalinkConfig struct {
	Address  string
	Password string
}

// voiceWait collects the VoiceStateUpdate/VoiceServerUpdate pair for one
// guild. Discord delivers the two events in either order; Lavalink needs
// both, so they are buffered and forwarded together. The ready channel is
// closed once the pair has been forwarded, which is what Join blocks on.
type voiceWait struct {
	mu        sync.Mutex
	channelID *snowflake.ID
	sessionID string
	token     string
	endpoint  string
	hasState  bool
	hasServer bool
	ready     chan struct{}
	forwarded bool
}

func newVoiceWait() *voiceWait {
	return &voiceWait{ready: make(chan struct{})}
}

// LavalinkBackend drives a Lavalink node through disgolink and joins voice
// channels through the discordgo session.
type LavalinkBackend struct {
	link       disgolink.Client
	session    *discordgo.Session
	botID      snowflake.ID
	onTrackEnd TrackEndFunc

	mu    sync.Mutex
	waits map[snowflake.ID]*voiceWait
}

// NewLavalinkBackend connects to the configured Lavalink node. The connection
// attempt itself is what makes Engine initialization fallible.
func NewLavalinkBackend(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
	onTrackEnd TrackEndFunc,
) (*LavalinkBackend, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	b := &LavalinkBackend{
		session:    session,
		botID:      botID,
		onTrackEnd: onTrackEnd,
		waits:      make(map[snowflake.ID]*voiceWait),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(b.handleTrackEnd),
		disgolink.WithListenerFunc(b.handleTrackException),
		disgolink.WithListenerFunc(b.handleTrackStuck),
	)
	b.link = link

	node, err := link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)
	return b, nil
}

// Join asks Discord for a voice connection and waits until the buffered voice
// event pair has been forwarded to Lavalink, or ctx expires.
func (b *LavalinkBackend) Join(ctx context.Context, guildID, channelID snowflake.ID) error {
	wait := b.wait(guildID)

	err := b.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-wait.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("voice connection not established: %w", ctx.Err())
	}
}

// Leave destroys the guild's player and disconnects from voice.
func (b *LavalinkBackend) Leave(ctx context.Context, guildID snowflake.ID) error {
	if player := b.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	if err := b.session.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// Play loads the track's URL on the best node and starts it on the guild's
// player, replacing anything currently playing.
func (b *LavalinkBackend) Play(ctx context.Context, guildID snowflake.ID, track domain.Track) error {
	node := b.link.BestNode()
	if node == nil {
		return errors.New("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, track.URL)
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	var encoded string
	switch data := result.Data.(type) {
	case lavalink.Track:
		encoded = data.Encoded
	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return errors.New("no playable tracks found")
		}
		encoded = data.Tracks[0].Encoded
	case lavalink.Search:
		if len(data) == 0 {
			return errors.New("no playable tracks found")
		}
		encoded = data[0].Encoded
	case lavalink.Exception:
		return fmt.Errorf("failed to load track: %s", data.Message)
	default:
		return errors.New("no playable tracks found")
	}

	player := b.link.Player(guildID)
	if err := player.Update(ctx, lavalink.WithEncodedTrack(encoded)); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	return nil
}

// Stop halts the guild's player without disconnecting.
func (b *LavalinkBackend) Stop(ctx context.Context, guildID snowflake.ID) error {
	player := b.link.Player(guildID)
	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	return nil
}

// SetPaused pauses or resumes the guild's player.
func (b *LavalinkBackend) SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error {
	player := b.link.Player(guildID)
	if err := player.Update(ctx, lavalink.WithPaused(paused)); err != nil {
		return fmt.Errorf("failed to update pause state: %w", err)
	}
	return nil
}

// SetVolume applies the volume to the guild's player.
func (b *LavalinkBackend) SetVolume(ctx context.Context, guildID snowflake.ID, volume int) error {
	player := b.link.Player(guildID)
	if err := player.Update(ctx, lavalink.WithVolume(volume)); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

// Close shuts down the Lavalink connection.
func (b *LavalinkBackend) Close() {
	b.link.Close()
}

// OnVoiceServerUpdate buffers the voice server half of the connection pair.
func (b *LavalinkBackend) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	wait := b.wait(guildID)
	wait.mu.Lock()
	wait.token = event.Token
	wait.endpoint = event.Endpoint
	wait.hasServer = true
	wait.mu.Unlock()

	b.forwardIfReady(guildID, wait)
}

// OnVoiceStateUpdate buffers the voice state half of the connection pair.
// Updates for users other than the bot are ignored.
func (b *LavalinkBackend) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != b.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// Empty channel ID means the bot is disconnecting.
	if event.ChannelID == "" {
		b.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		b.clearWait(guildID)
		return
	}

	channelID, err := snowflake.Parse(event.ChannelID)
	if err != nil {
		slog.Error("failed to parse channel ID in voice state update", "error", err)
		return
	}

	wait := b.wait(guildID)
	wait.mu.Lock()
	wait.channelID = &channelID
	wait.sessionID = event.SessionID
	wait.hasState = true
	wait.mu.Unlock()

	b.forwardIfReady(guildID, wait)
}

// forwardIfReady pushes the buffered pair to Lavalink once both halves have
// arrived, then releases any Join call blocked on it.
func (b *LavalinkBackend) forwardIfReady(guildID snowflake.ID, wait *voiceWait) {
	wait.mu.Lock()
	if !wait.hasState || !wait.hasServer || wait.forwarded {
		wait.mu.Unlock()
		return
	}
	wait.forwarded = true
	channelID := wait.channelID
	sessionID := wait.sessionID
	token := wait.token
	endpoint := wait.endpoint
	wait.mu.Unlock()

	// Lavalink expects state before server.
	b.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	b.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)

	close(wait.ready)
}

// wait returns the guild's voiceWait, creating it if absent.
func (b *LavalinkBackend) wait(guildID snowflake.ID) *voiceWait {
	b.mu.Lock()
	defer b.mu.Unlock()

	wait, ok := b.waits[guildID]
	if !ok {
		wait = newVoiceWait()
		b.waits[guildID] = wait
	}
	return wait
}

func (b *LavalinkBackend) clearWait(guildID snowflake.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waits, guildID)
}

func (b *LavalinkBackend) handleTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	finished := event.Reason == lavalink.TrackEndReasonFinished ||
		event.Reason == lavalink.TrackEndReasonLoadFailed
	if b.onTrackEnd != nil {
		b.onTrackEnd(player.GuildID(), finished)
	}
}

func (b *LavalinkBackend) handleTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (b *LavalinkBackend) handleTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

// Ensure LavalinkBackend satisfies the engine contracts.
var (
	_ Backend           = (*LavalinkBackend)(nil)
	_ VoiceEventHandler = (*LavalinkBackend)(nil)
)
