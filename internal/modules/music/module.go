// Package music implements the music playback module: slash commands for
// queueing and controlling YouTube audio played through a Lavalink node.
package music

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"

	"github.com/nozuki/melobot/internal/bot"
	"github.com/nozuki/melobot/internal/modules/music/engine"
	"github.com/nozuki/melobot/internal/modules/music/resolver"
	"github.com/nozuki/melobot/internal/modules/music/session"
)

// engineRetryDelay is how long to wait before the single retry after a failed
// engine initialization on startup.
const engineRetryDelay = 5 * time.Second

// Compile-time interface check.
var _ bot.Module = (*Module)(nil)

// Module provides music playback commands.
type Module struct {
	config   Config
	engine   *engine.Engine
	adapter  *engine.Adapter
	handlers *Handlers

	ctx    context.Context
	cancel context.CancelFunc
}

// NewModule creates the music module. Configuration is read from the
// environment during Init.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "music"
}

// Commands returns the slash commands for this module.
func (m *Module) Commands() []*discordgo.ApplicationCommand {
	return Commands()
}

// Handlers returns the command handlers for this module.
func (m *Module) Handlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":       m.handlers.HandlePlay,
		"pause":      m.handlers.HandlePause,
		"resume":     m.handlers.HandleResume,
		"skip":       m.handlers.HandleSkip,
		"previous":   m.handlers.HandlePrevious,
		"volume":     m.handlers.HandleVolume,
		"nowplaying": m.handlers.HandleNowPlaying,
		"queue":      m.handlers.HandleQueue,
		"repeat":     m.handlers.HandleRepeat,
		"stop":       m.handlers.HandleStop,
		"join":       m.handlers.HandleJoin,
		"leave":      m.handlers.HandleLeave,
		"debug":      m.handlers.HandleDebug,
	}
}

// EventHandlers returns the gateway event handlers for this module.
func (m *Module) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.Ready) {
			m.handleReady(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			if backend, ok := m.voiceEventTarget(); ok {
				backend.OnVoiceServerUpdate(event)
			}
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			if backend, ok := m.voiceEventTarget(); ok {
				backend.OnVoiceStateUpdate(event)
			}
		},
	}
}

// Init wires the module together: YouTube resolver, per-guild sessions, the
// playback engine, and the command handlers.
func (m *Module) Init(deps bot.ModuleDependencies) error {
	if err := env.Parse(&m.config); err != nil {
		return fmt.Errorf("failed to load music module config: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	res, err := resolver.New(m.ctx, m.config.YoutubeAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create YouTube resolver: %w", err)
	}

	sessions := session.NewStore()
	m.engine = engine.New(nil)
	m.adapter = engine.NewAdapter(m.engine, sessions)

	lavalinkConfig := engine.LavalinkConfig{
		Address:  m.config.LavalinkAddress,
		Password: m.config.LavalinkPassword,
	}
	m.engine.SetDial(func() (engine.Backend, error) {
		return engine.NewLavalinkBackend(m.ctx, deps.Session, lavalinkConfig, m.adapter.HandleTrackEnd)
	})

	presence := func(activity string) {
		if err := deps.Session.UpdateListeningStatus(activity); err != nil {
			slog.Warn("failed to update presence", "error", err)
		}
	}
	m.handlers = NewHandlers(m.adapter, res, presence, m.engine.Ready)

	return nil
}

// Shutdown disconnects from the Lavalink node.
func (m *Module) Shutdown() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.engine != nil {
		m.engine.Close()
	}
	return nil
}

// handleReady kicks off engine initialization once the gateway session is
// established, since connecting to Lavalink needs the bot's user ID.
func (m *Module) handleReady(s *discordgo.Session, _ *discordgo.Ready) {
	m.engine.InitializeWithRetry(engineRetryDelay)
	if err := s.UpdateListeningStatus(readyActivity); err != nil {
		slog.Warn("failed to update presence", "error", err)
	}
}

// voiceEventTarget returns the live backend as a voice event sink, if the
// engine is initialized and the backend handles voice events.
func (m *Module) voiceEventTarget() (engine.VoiceEventHandler, bool) {
	backend, ok := m.engine.Current()
	if !ok {
		return nil, false
	}
	sink, ok := backend.(engine.VoiceEventHandler)
	return sink, ok
}
