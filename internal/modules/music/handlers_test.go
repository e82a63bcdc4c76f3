package music

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/nozuki/melobot/internal/bot"
	"github.com/nozuki/melobot/internal/modules/music/domain"
	"github.com/nozuki/melobot/internal/modules/music/engine"
)

const (
	testGuildID   = "100000000000000001"
	testUserID    = "100000000000000002"
	testChannelID = "100000000000000003"
)

// fakePlayback records adapter calls and returns canned results.
type fakePlayback struct {
	playResult   engine.Result
	result       engine.Result
	volumeResult engine.Result
	nowPlaying   engine.NowPlayingInfo
	view         engine.QueueView

	playCalls   int
	playedTrack domain.Track
	volumeLevel int
	repeatMode  domain.RepeatMode
	cycled      bool
	calls       []string
}

func (f *fakePlayback) Play(
	_ context.Context,
	_, _ snowflake.ID,
	track domain.Track,
) engine.Result {
	f.playCalls++
	f.playedTrack = track
	f.calls = append(f.calls, "play")
	return f.playResult
}

func (f *fakePlayback) Pause(_ context.Context, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "pause")
	return f.result
}

func (f *fakePlayback) Resume(_ context.Context, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "resume")
	return f.result
}

func (f *fakePlayback) Skip(_ context.Context, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "skip")
	return f.result
}

func (f *fakePlayback) Previous(_ context.Context, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "previous")
	return f.result
}

func (f *fakePlayback) Stop(_ context.Context, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "stop")
	return f.result
}

func (f *fakePlayback) Join(_ context.Context, _, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "join")
	return f.result
}

func (f *fakePlayback) Leave(_ context.Context, _ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "leave")
	return f.result
}

func (f *fakePlayback) SetVolume(_ context.Context, _ snowflake.ID, level int) engine.Result {
	f.calls = append(f.calls, "volume")
	f.volumeLevel = level
	return f.volumeResult
}

func (f *fakePlayback) SetRepeat(_ snowflake.ID, mode domain.RepeatMode) engine.Result {
	f.calls = append(f.calls, "repeat")
	f.repeatMode = mode
	return engine.Result{Success: true, Message: "Repeat mode set to " + mode.String()}
}

func (f *fakePlayback) CycleRepeat(_ snowflake.ID) engine.Result {
	f.calls = append(f.calls, "repeat")
	f.cycled = true
	return engine.Result{Success: true, Message: "Repeat mode set to track"}
}

func (f *fakePlayback) NowPlaying(_ snowflake.ID) engine.NowPlayingInfo {
	return f.nowPlaying
}

func (f *fakePlayback) View(_ snowflake.ID) engine.QueueView {
	return f.view
}

// fakeResolver returns a fixed track, nil when unset.
type fakeResolver struct {
	track   *domain.Track
	queries []string
}

func (f *fakeResolver) Resolve(_ context.Context, query string) *domain.Track {
	f.queries = append(f.queries, query)
	return f.track
}

type handlerFixture struct {
	handlers   *Handlers
	playback   *fakePlayback
	resolver   *fakeResolver
	activities []string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		playback: &fakePlayback{},
		resolver: &fakeResolver{},
	}
	f.handlers = NewHandlers(
		f.playback,
		f.resolver,
		func(activity string) { f.activities = append(f.activities, activity) },
		func() bool { return true },
	)
	f.handlers.voiceChannel = func(_ *discordgo.Session, _, _ string) string {
		return testChannelID
	}
	return f
}

func (f *handlerFixture) noVoiceChannel() {
	f.handlers.voiceChannel = func(_ *discordgo.Session, _, _ string) string {
		return ""
	}
}

func interaction(command string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: testGuildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: testUserID}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    command,
				Options: options,
			},
		},
	}
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func integerOpt(name string, value float64) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: value,
	}
}

func singleEdit(t *testing.T, r *bot.MockResponder) string {
	t.Helper()
	if len(r.Edits) != 1 {
		t.Fatalf("expected exactly one edit, got %v", r.Edits)
	}
	return r.Edits[0]
}

func TestHandlePlay_StartsTrack(t *testing.T) {
	f := newHandlerFixture(t)
	track := domain.Track{ID: "abc", Title: "Test Song", Uploader: "Test Channel", URL: "https://www.youtube.com/watch?v=abc"}
	f.resolver.track = &track
	f.playback.playResult = engine.Result{Success: true, Message: "Now playing: Test Song", Track: &track}

	r := &bot.MockResponder{}
	if err := f.handlers.HandlePlay(nil, interaction("play", stringOpt("query", "test song")), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !r.Deferred() {
		t.Error("expected the interaction to be deferred")
	}
	edit := singleEdit(t, r)
	if edit != "🎵 Now playing: Test Song\n**Channel:** Test Channel" {
		t.Errorf("unexpected reply: %q", edit)
	}
	if f.playback.playCalls != 1 {
		t.Errorf("expected one play call, got %d", f.playback.playCalls)
	}
	if len(f.activities) != 1 || f.activities[0] != "🎵 Test Song" {
		t.Errorf("expected presence update with track title, got %v", f.activities)
	}
}

func TestHandlePlay_AddedToQueue(t *testing.T) {
	f := newHandlerFixture(t)
	track := domain.Track{ID: "abc", Title: "Queued Song", Uploader: "Someone"}
	f.resolver.track = &track
	f.playback.playResult = engine.Result{
		Success:      true,
		Message:      "Added to queue: Queued Song",
		Track:        &track,
		AddedToQueue: true,
	}

	r := &bot.MockResponder{}
	if err := f.handlers.HandlePlay(nil, interaction("play", stringOpt("query", "queued song")), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edit := singleEdit(t, r)
	if !strings.HasPrefix(edit, "➕ Added to queue: Queued Song") {
		t.Errorf("expected queue-add reply, got %q", edit)
	}
	if len(f.activities) != 0 {
		t.Errorf("expected no presence change when appending, got %v", f.activities)
	}
}

func TestHandlePlay_NoResults(t *testing.T) {
	f := newHandlerFixture(t)
	f.resolver.track = nil

	r := &bot.MockResponder{}
	if err := f.handlers.HandlePlay(nil, interaction("play", stringOpt("query", "gibberish")), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if edit := singleEdit(t, r); edit != "❌ No results found" {
		t.Errorf("unexpected reply: %q", edit)
	}
	if f.playback.playCalls != 0 {
		t.Error("expected playback to remain untouched without a resolved track")
	}
}

func TestHandlePlay_RequiresVoiceChannel(t *testing.T) {
	f := newHandlerFixture(t)
	f.noVoiceChannel()

	r := &bot.MockResponder{}
	if err := f.handlers.HandlePlay(nil, interaction("play", stringOpt("query", "song")), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.Ephemerals) != 1 || r.Ephemerals[0] != voiceChannelRequiredMessage {
		t.Errorf("expected ephemeral voice channel rejection, got %v", r.Ephemerals)
	}
	if r.Deferred() {
		t.Error("expected no deferral after rejection")
	}
	if len(f.resolver.queries) != 0 {
		t.Error("expected no resolution after rejection")
	}
}

func TestHandlePlay_RejectsEmptyQuery(t *testing.T) {
	f := newHandlerFixture(t)

	r := &bot.MockResponder{}
	if err := f.handlers.HandlePlay(nil, interaction("play", stringOpt("query", "<<>>")), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.Ephemerals) != 1 || r.Ephemerals[0] != invalidQueryMessage {
		t.Errorf("expected invalid query rejection, got %v", r.Ephemerals)
	}
}

func TestHandlePause(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.result = engine.Result{Success: true, Message: "Paused"}

		r := &bot.MockResponder{}
		if err := f.handlers.HandlePause(nil, interaction("pause"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "⏸️ Paused playback" {
			t.Errorf("unexpected reply: %q", edit)
		}
		if len(f.activities) != 1 || f.activities[0] != "⏸️ Paused" {
			t.Errorf("expected paused presence, got %v", f.activities)
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.result = engine.Result{Message: "Nothing is playing"}

		r := &bot.MockResponder{}
		if err := f.handlers.HandlePause(nil, interaction("pause"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "❌ Nothing is playing" {
			t.Errorf("unexpected reply: %q", edit)
		}
	})
}

func TestHandleResume_UpdatesPresenceFromCurrentTrack(t *testing.T) {
	f := newHandlerFixture(t)
	f.playback.result = engine.Result{Success: true, Message: "Resumed"}
	f.playback.nowPlaying = engine.NowPlayingInfo{
		Track:     &domain.Track{Title: "Back Again"},
		IsPlaying: true,
	}

	r := &bot.MockResponder{}
	if err := f.handlers.HandleResume(nil, interaction("resume"), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edit := singleEdit(t, r); edit != "▶️ Resumed playback" {
		t.Errorf("unexpected reply: %q", edit)
	}
	if len(f.activities) != 1 || f.activities[0] != "🎵 Back Again" {
		t.Errorf("expected presence with resumed track, got %v", f.activities)
	}
}

func TestHandleSkip(t *testing.T) {
	f := newHandlerFixture(t)
	f.playback.result = engine.Result{Success: true, Message: "Skipped to next song"}
	f.playback.nowPlaying = engine.NowPlayingInfo{Track: &domain.Track{Title: "Next One"}}

	r := &bot.MockResponder{}
	if err := f.handlers.HandleSkip(nil, interaction("skip"), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edit := singleEdit(t, r); edit != "⏭️ Skipped to next song" {
		t.Errorf("unexpected reply: %q", edit)
	}
}

func TestHandlePrevious_Failure(t *testing.T) {
	f := newHandlerFixture(t)
	f.playback.result = engine.Result{Message: "No previous song"}

	r := &bot.MockResponder{}
	if err := f.handlers.HandlePrevious(nil, interaction("previous"), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edit := singleEdit(t, r); edit != "❌ No previous song" {
		t.Errorf("unexpected reply: %q", edit)
	}
	if len(f.activities) != 0 {
		t.Errorf("expected no presence change on failure, got %v", f.activities)
	}
}

func TestHandleVolume(t *testing.T) {
	f := newHandlerFixture(t)
	f.playback.volumeResult = engine.Result{Success: true, Message: "Volume set to 75%", Volume: 75}

	r := &bot.MockResponder{}
	if err := f.handlers.HandleVolume(nil, interaction("volume", integerOpt("level", 75)), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.playback.volumeLevel != 75 {
		t.Errorf("expected level 75 forwarded, got %d", f.playback.volumeLevel)
	}
	if edit := singleEdit(t, r); edit != "🔊 Volume set to 75%" {
		t.Errorf("unexpected reply: %q", edit)
	}
}

func TestHandleNowPlaying(t *testing.T) {
	t.Run("with track", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.nowPlaying = engine.NowPlayingInfo{
			Track:       &domain.Track{Title: "Current Song", Uploader: "Artist"},
			IsPlaying:   true,
			QueueLength: 3,
			Volume:      60,
			Repeat:      domain.RepeatQueue,
		}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleNowPlaying(nil, interaction("nowplaying"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		edit := singleEdit(t, r)
		for _, want := range []string{
			"🎵 **Now Playing**",
			"**Current Song**",
			"by *Artist*",
			"🔊 Volume: 60%",
			"🔁 Repeat: queue",
			"📋 Queue: 3 songs",
		} {
			if !strings.Contains(edit, want) {
				t.Errorf("expected reply to contain %q, got %q", want, edit)
			}
		}
	})

	t.Run("paused uses pause emoji", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.nowPlaying = engine.NowPlayingInfo{
			Track:  &domain.Track{Title: "Halted", Uploader: "Artist"},
			Volume: 50,
		}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleNowPlaying(nil, interaction("nowplaying"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); !strings.HasPrefix(edit, "⏸️ **Now Playing**") {
			t.Errorf("expected paused emoji, got %q", edit)
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		f := newHandlerFixture(t)

		r := &bot.MockResponder{}
		if err := f.handlers.HandleNowPlaying(nil, interaction("nowplaying"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "❌ No song is currently playing." {
			t.Errorf("unexpected reply: %q", edit)
		}
	})
}

func TestHandleQueue(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		f := newHandlerFixture(t)

		r := &bot.MockResponder{}
		if err := f.handlers.HandleQueue(nil, interaction("queue"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "❌ Queue is empty." {
			t.Errorf("unexpected reply: %q", edit)
		}
	})

	t.Run("current with no upcoming", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.view = engine.QueueView{
			Current: &domain.Track{Title: "Solo", Uploader: "Artist"},
			Length:  1,
		}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleQueue(nil, interaction("queue"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		edit := singleEdit(t, r)
		if !strings.Contains(edit, "Solo by *Artist*") || !strings.Contains(edit, "📋 Queue is empty") {
			t.Errorf("unexpected reply: %q", edit)
		}
	})

	t.Run("long queue is truncated", func(t *testing.T) {
		f := newHandlerFixture(t)
		upcoming := make([]domain.Track, 14)
		for i := range upcoming {
			upcoming[i] = domain.Track{Title: "Song", Uploader: "Artist"}
		}
		f.playback.view = engine.QueueView{
			Current:  &domain.Track{Title: "Current", Uploader: "Artist"},
			Upcoming: upcoming,
			Length:   15,
		}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleQueue(nil, interaction("queue"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		edit := singleEdit(t, r)
		if !strings.Contains(edit, "📋 **Queue (14 songs):**") {
			t.Errorf("expected queue header, got %q", edit)
		}
		if !strings.Contains(edit, "... and 4 more songs") {
			t.Errorf("expected truncation note, got %q", edit)
		}
		if strings.Contains(edit, "11. ") {
			t.Errorf("expected at most 10 listed entries, got %q", edit)
		}
	})
}

func TestHandleRepeat(t *testing.T) {
	t.Run("explicit mode", func(t *testing.T) {
		f := newHandlerFixture(t)

		r := &bot.MockResponder{}
		if err := f.handlers.HandleRepeat(nil, interaction("repeat", stringOpt("mode", "queue")), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.playback.repeatMode != domain.RepeatQueue {
			t.Errorf("expected RepeatQueue forwarded, got %v", f.playback.repeatMode)
		}
		if edit := singleEdit(t, r); edit != "🔁 Repeat mode set to queue" {
			t.Errorf("unexpected reply: %q", edit)
		}
	})

	t.Run("no mode cycles", func(t *testing.T) {
		f := newHandlerFixture(t)

		r := &bot.MockResponder{}
		if err := f.handlers.HandleRepeat(nil, interaction("repeat"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.playback.cycled {
			t.Error("expected cycle when no mode given")
		}
	})
}

func TestHandleStop(t *testing.T) {
	f := newHandlerFixture(t)
	f.playback.result = engine.Result{Success: true, Message: "Stopped"}

	r := &bot.MockResponder{}
	if err := f.handlers.HandleStop(nil, interaction("stop"), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edit := singleEdit(t, r); edit != "⏹️ Stopped playback and cleared queue" {
		t.Errorf("unexpected reply: %q", edit)
	}
	if len(f.activities) != 1 || f.activities[0] != readyActivity {
		t.Errorf("expected ready presence after stop, got %v", f.activities)
	}
}

func TestHandleJoin(t *testing.T) {
	t.Run("requires voice channel", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.noVoiceChannel()

		r := &bot.MockResponder{}
		if err := f.handlers.HandleJoin(nil, interaction("join"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(r.Ephemerals) != 1 || r.Ephemerals[0] != voiceChannelRequiredMessage {
			t.Errorf("expected voice channel rejection, got %v", r.Ephemerals)
		}
	})

	t.Run("success", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.result = engine.Result{Success: true, Message: "Joined the voice channel"}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleJoin(nil, interaction("join"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "✅ Joined the voice channel" {
			t.Errorf("unexpected reply: %q", edit)
		}
	})
}

func TestHandleLeave(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.result = engine.Result{Success: true, Message: "Left voice channel"}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleLeave(nil, interaction("leave"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "✅ Left voice channel!" {
			t.Errorf("unexpected reply: %q", edit)
		}
		if len(f.activities) != 1 || f.activities[0] != readyActivity {
			t.Errorf("expected ready presence after leave, got %v", f.activities)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.playback.result = engine.Result{Message: "Not connected to a voice channel"}

		r := &bot.MockResponder{}
		if err := f.handlers.HandleLeave(nil, interaction("leave"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if edit := singleEdit(t, r); edit != "❌ Not connected to a voice channel" {
			t.Errorf("unexpected reply: %q", edit)
		}
	})
}

func TestHandleDebug(t *testing.T) {
	f := newHandlerFixture(t)

	r := &bot.MockResponder{}
	if err := f.handlers.HandleDebug(nil, interaction("debug"), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edit := singleEdit(t, r)
	for _, want := range []string{
		"🔧 **Bot Debug Info**",
		"**Engine Status:** ✅ Initialized",
		"**Go Version:** go",
		"**Uptime:**",
		"**Memory Usage:**",
		"**Servers:** 0",
	} {
		if !strings.Contains(edit, want) {
			t.Errorf("expected reply to contain %q, got %q", want, edit)
		}
	}
}
