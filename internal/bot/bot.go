// Package bot provides the generic lifecycle around a Discord slash-command
// bot: configuration, command registration, interaction dispatch, and the
// outer error boundary. Feature logic lives in modules.
package bot

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/bwmarrin/discordgo"
)

const (
	dmRejectionMessage    = "This bot only works in servers, not in DMs!"
	unknownCommandMessage = "Unknown command!"
	genericFailureMessage = "There was an error executing this command!"
)

// Bot manages the Discord session lifecycle and module coordination.
type Bot struct {
	config   *Config
	session  *discordgo.Session
	modules  []Module
	handlers map[string]InteractionHandler
}

// New creates a Bot with the given configuration and no modules.
func New(cfg *Config) *Bot {
	return &Bot{
		config:   cfg,
		modules:  make([]Module, 0),
		handlers: make(map[string]InteractionHandler),
	}
}

// AddModule attaches a module. Must be called before Start.
func (b *Bot) AddModule(m Module) {
	b.modules = append(b.modules, m)
}

// Session returns the underlying Discord session, nil before Start.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start connects to Discord, initializes modules, and registers commands.
func (b *Bot) Start() error {
	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates
	b.session = session

	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	b.buildHandlerMap()
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleGuildCreate)
	b.session.AddHandler(b.handleGuildDelete)
	b.registerEventHandlers()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
		"guilds", len(b.session.State.Guilds),
	)

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	if b.session != nil {
		return b.session.Close()
	}
	return nil
}

// initModules initializes all attached modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	return nil
}

// buildHandlerMap builds the command name to handler mapping.
func (b *Bot) buildHandlerMap() {
	for _, mod := range b.modules {
		maps.Copy(b.handlers, mod.Handlers())
	}
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// registerCommands registers all module commands with Discord, scoped to the
// configured development guild when one is set.
func (b *Bot) registerCommands() error {
	var commands []*discordgo.ApplicationCommand
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(b.config.ApplicationID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		slog.Debug("registered command", "command", cmd.Name)
	}

	if b.config.GuildID != "" {
		slog.Info("registered commands to guild", "count", len(commands), "guild", b.config.GuildID)
	} else {
		slog.Info("registered commands globally", "count", len(commands))
	}

	return nil
}

// handleInteraction routes incoming interactions to the appropriate handler
// and acts as the outer error boundary: a failed handler gets exactly one
// generic failure reply, sent or edited depending on how far the handler got.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	responder := NewDiscordResponder(s, i.Interaction)

	if i.GuildID == "" {
		if err := responder.RespondEphemeral(dmRejectionMessage); err != nil {
			slog.Error("failed to reject DM interaction", "error", err)
		}
		return
	}

	cmdName := i.ApplicationCommandData().Name
	handler, ok := b.handlers[cmdName]
	if !ok {
		slog.Warn("found no handler for command", "command", cmdName)
		if err := responder.RespondEphemeral(unknownCommandMessage); err != nil {
			slog.Error("failed to send unknown command reply", "error", err)
		}
		return
	}

	slog.Info("handling command",
		"command", cmdName,
		"guild", i.GuildID,
		"user", i.Member.User.Username,
	)

	if err := handler(s, i, responder); err != nil {
		slog.Error("failed to handle command", "command", cmdName, "error", err)
		b.respondWithFailure(responder)
	}
}

// respondWithFailure delivers the single generic failure reply for a handler
// error, respecting whatever acknowledgement state the handler left behind.
func (b *Bot) respondWithFailure(r Responder) {
	var err error
	if !r.Acknowledged() {
		err = r.RespondEphemeral(genericFailureMessage)
	} else if r.Deferred() {
		err = r.Edit(genericFailureMessage)
	}
	if err != nil {
		slog.Error("failed to send error response", "error", err)
	}
}

func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	slog.Info("joined guild", "guild", g.ID, "name", g.Name, "total", len(s.State.Guilds))
}

func (b *Bot) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	slog.Info("removed from guild", "guild", g.ID, "total", len(s.State.Guilds))
}
