package music

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/nozuki/melobot/internal/bot"
	"github.com/nozuki/melobot/internal/modules/music/domain"
	"github.com/nozuki/melobot/internal/modules/music/engine"
	"github.com/nozuki/melobot/internal/modules/music/resolver"
)

const (
	voiceChannelRequiredMessage = "❌ You must be in a voice channel to use this command!"
	invalidQueryMessage         = "Please provide a valid song name or URL!"
	readyActivity               = "🎵 Ready to play music"

	queueListLimit = 10
)

// playbackController is the slice of the playback adapter the handlers use.
type playbackController interface {
	Play(ctx context.Context, guildID, voiceChannelID snowflake.ID, track domain.Track) engine.Result
	Pause(ctx context.Context, guildID snowflake.ID) engine.Result
	Resume(ctx context.Context, guildID snowflake.ID) engine.Result
	Skip(ctx context.Context, guildID snowflake.ID) engine.Result
	Previous(ctx context.Context, guildID snowflake.ID) engine.Result
	Stop(ctx context.Context, guildID snowflake.ID) engine.Result
	Join(ctx context.Context, guildID, voiceChannelID snowflake.ID) engine.Result
	Leave(ctx context.Context, guildID snowflake.ID) engine.Result
	SetVolume(ctx context.Context, guildID snowflake.ID, level int) engine.Result
	SetRepeat(guildID snowflake.ID, mode domain.RepeatMode) engine.Result
	CycleRepeat(guildID snowflake.ID) engine.Result
	NowPlaying(guildID snowflake.ID) engine.NowPlayingInfo
	View(guildID snowflake.ID) engine.QueueView
}

// trackResolver resolves a user query to a playable track.
type trackResolver interface {
	Resolve(ctx context.Context, query string) *domain.Track
}

// Handlers holds the slash command handlers for the music module.
type Handlers struct {
	playback playbackController
	resolver trackResolver

	// voiceChannel looks up the voice channel a guild member is connected
	// to, empty when they are not in voice.
	voiceChannel func(s *discordgo.Session, guildID, userID string) string

	// presence updates the bot's activity text.
	presence func(activity string)

	// engineReady reports the playback engine status for /debug.
	engineReady func() bool

	started time.Time
}

// NewHandlers creates the command handlers.
func NewHandlers(
	playback playbackController,
	res trackResolver,
	presence func(activity string),
	engineReady func() bool,
) *Handlers {
	return &Handlers{
		playback:     playback,
		resolver:     res,
		voiceChannel: stateVoiceChannel,
		presence:     presence,
		engineReady:  engineReady,
		started:      time.Now(),
	}
}

// stateVoiceChannel resolves the member's voice channel from session state.
func stateVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// HandlePlay handles the /play command.
func (h *Handlers) HandlePlay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	query := resolver.Sanitize(stringOption(i, "query"))
	if query == "" {
		return r.RespondEphemeral(invalidQueryMessage)
	}

	channelID := h.voiceChannel(s, i.GuildID, i.Member.User.ID)
	if channelID == "" {
		return r.RespondEphemeral(voiceChannelRequiredMessage)
	}

	if err := r.Defer(); err != nil {
		return err
	}

	ctx := context.Background()
	track := h.resolver.Resolve(ctx, query)
	if track == nil {
		return r.Edit("❌ No results found")
	}

	guildID, voiceChannelID, err := parseIDs(i.GuildID, channelID)
	if err != nil {
		return err
	}

	result := h.playback.Play(ctx, guildID, voiceChannelID, *track)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	emoji := "🎵"
	if result.AddedToQueue {
		emoji = "➕"
	} else {
		h.presence("🎵 " + track.Title)
	}
	return r.Edit(fmt.Sprintf("%s %s\n**Channel:** %s", emoji, result.Message, track.Uploader))
}

// HandlePause handles the /pause command.
func (h *Handlers) HandlePause(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.Pause(context.Background(), guildID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	h.presence("⏸️ Paused")
	return r.Edit("⏸️ Paused playback")
}

// HandleResume handles the /resume command.
func (h *Handlers) HandleResume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.Resume(context.Background(), guildID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	h.updatePlayingPresence(guildID)
	return r.Edit("▶️ Resumed playback")
}

// HandleSkip handles the /skip command.
func (h *Handlers) HandleSkip(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.Skip(context.Background(), guildID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	h.updatePlayingPresence(guildID)
	return r.Edit("⏭️ Skipped to next song")
}

// HandlePrevious handles the /previous command.
func (h *Handlers) HandlePrevious(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.Previous(context.Background(), guildID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	h.updatePlayingPresence(guildID)
	return r.Edit("⏮️ Playing previous song")
}

// HandleVolume handles the /volume command.
func (h *Handlers) HandleVolume(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	level := integerOption(i, "level")

	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.SetVolume(context.Background(), guildID, level)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}
	return r.Edit(fmt.Sprintf("🔊 Volume set to %d%%", result.Volume))
}

// HandleNowPlaying handles the /nowplaying command.
func (h *Handlers) HandleNowPlaying(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	info := h.playback.NowPlaying(guildID)
	if info.Track == nil {
		return r.Edit("❌ No song is currently playing.")
	}

	statusEmoji := "⏸️"
	if info.IsPlaying {
		statusEmoji = "🎵"
	}
	repeatEmoji := ""
	switch info.Repeat {
	case domain.RepeatTrack:
		repeatEmoji = "🔂 "
	case domain.RepeatQueue:
		repeatEmoji = "🔁 "
	}

	return r.Edit(fmt.Sprintf(
		"%s **Now Playing**\n**%s**\nby *%s*\n\n🔊 Volume: %d%%\n%sRepeat: %s\n📋 Queue: %d songs",
		statusEmoji,
		info.Track.Title,
		info.Track.Uploader,
		info.Volume,
		repeatEmoji,
		info.Repeat,
		info.QueueLength,
	))
}

// HandleQueue handles the /queue command.
func (h *Handlers) HandleQueue(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	view := h.playback.View(guildID)
	if view.Current == nil {
		return r.Edit("❌ Queue is empty.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎵 **Now Playing:**\n%s by *%s*\n\n", view.Current.Title, view.Current.Uploader)

	if len(view.Upcoming) == 0 {
		b.WriteString("📋 Queue is empty")
		return r.Edit(b.String())
	}

	fmt.Fprintf(&b, "📋 **Queue (%d songs):**\n", len(view.Upcoming))
	for idx, track := range view.Upcoming {
		if idx == queueListLimit {
			fmt.Fprintf(&b, "... and %d more songs", len(view.Upcoming)-queueListLimit)
			break
		}
		fmt.Fprintf(&b, "%d. %s by *%s*\n", idx+1, track.Title, track.Uploader)
	}
	return r.Edit(b.String())
}

// HandleRepeat handles the /repeat command.
func (h *Handlers) HandleRepeat(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	var result engine.Result
	if raw := stringOption(i, "mode"); raw != "" {
		result = h.playback.SetRepeat(guildID, domain.ParseRepeatMode(raw))
	} else {
		result = h.playback.CycleRepeat(guildID)
	}

	return r.Edit("🔁 " + result.Message)
}

// HandleStop handles the /stop command.
func (h *Handlers) HandleStop(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.Stop(context.Background(), guildID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	h.presence(readyActivity)
	return r.Edit("⏹️ Stopped playback and cleared queue")
}

// HandleJoin handles the /join command.
func (h *Handlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	channelID := h.voiceChannel(s, i.GuildID, i.Member.User.ID)
	if channelID == "" {
		return r.RespondEphemeral(voiceChannelRequiredMessage)
	}

	if err := r.Defer(); err != nil {
		return err
	}

	guildID, voiceChannelID, err := parseIDs(i.GuildID, channelID)
	if err != nil {
		return err
	}

	result := h.playback.Join(context.Background(), guildID, voiceChannelID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}
	return r.Edit("✅ " + result.Message)
}

// HandleLeave handles the /leave command.
func (h *Handlers) HandleLeave(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return err
	}
	if err := r.Defer(); err != nil {
		return err
	}

	result := h.playback.Leave(context.Background(), guildID)
	if !result.Success {
		return r.Edit("❌ " + result.Message)
	}

	h.presence(readyActivity)
	return r.Edit("✅ Left voice channel!")
}

// HandleDebug handles the /debug command.
func (h *Handlers) HandleDebug(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	if err := r.Defer(); err != nil {
		return err
	}

	engineStatus := "❌ Not Initialized"
	if h.engineReady() {
		engineStatus = "✅ Initialized"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	guilds := 0
	if s != nil && s.State != nil {
		guilds = len(s.State.Guilds)
	}

	return r.Edit(fmt.Sprintf(
		"🔧 **Bot Debug Info**\n\n"+
			"**Engine Status:** %s\n"+
			"**Go Version:** %s\n"+
			"**Uptime:** %d seconds\n"+
			"**Memory Usage:** %d MB\n"+
			"**Servers:** %d",
		engineStatus,
		runtime.Version(),
		int(time.Since(h.started).Seconds()),
		mem.HeapAlloc/1024/1024,
		guilds,
	))
}

// updatePlayingPresence reflects the current track in the bot's activity.
func (h *Handlers) updatePlayingPresence(guildID snowflake.ID) {
	info := h.playback.NowPlaying(guildID)
	if info.Track != nil {
		h.presence("🎵 " + info.Track.Title)
	} else {
		h.presence("🎵 Playing")
	}
}

func parseIDs(guildID, channelID string) (snowflake.ID, snowflake.ID, error) {
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid guild ID %q: %w", guildID, err)
	}
	cid, err := snowflake.Parse(channelID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel ID %q: %w", channelID, err)
	}
	return gid, cid, nil
}

func stringOption(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

func integerOption(i *discordgo.InteractionCreate, name string) int {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}
