package engine

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/nozuki/melobot/internal/modules/music/domain"
)

// Backend is the narrow contract against the external playback engine.
// Implementations report failures as errors; the Adapter is responsible for
// translating them into user-facing results.
type Backend interface {
	// Join connects the bot to a voice channel and waits until the voice
	// connection is usable or ctx expires.
	Join(ctx context.Context, guildID, channelID snowflake.ID) error

	// Leave disconnects the bot from the guild's voice channel.
	Leave(ctx context.Context, guildID snowflake.ID) error

	// Play starts playback of a track, replacing whatever is playing.
	Play(ctx context.Context, guildID snowflake.ID, track domain.Track) error

	// Stop halts playback without leaving the channel.
	Stop(ctx context.Context, guildID snowflake.ID) error

	// SetPaused pauses or resumes the guild's player.
	SetPaused(ctx context.Context, guildID snowflake.ID, paused bool) error

	// SetVolume applies a 0-100 volume to the guild's player.
	SetVolume(ctx context.Context, guildID snowflake.ID, volume int) error

	// Close releases the engine connection.
	Close()
}

// VoiceEventHandler is implemented by backends that need raw Discord voice
// events forwarded to them.
type VoiceEventHandler interface {
	OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate)
	OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate)
}

// TrackEndFunc is called when a track ends. finished is true when the engine
// ran out of track on its own (as opposed to a stop or replace the bot
// initiated) and the queue should advance.
type TrackEndFunc func(guildID snowflake.ID, finished bool)
