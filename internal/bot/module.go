package bot

import "github.com/bwmarrin/discordgo"

// InteractionHandler handles a slash-command interaction and produces a
// response through the Responder. A returned error means the handler gave up
// without completing its reply; the bot's outer boundary answers instead.
type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error

// EventHandler is a generic handler for any Discord gateway event.
// It must be a function matching one of discordgo's handler signatures,
// e.g. func(s *discordgo.Session, e *discordgo.VoiceStateUpdate).
type EventHandler any

// ModuleDependencies provides what modules need during initialization.
type ModuleDependencies struct {
	Session *discordgo.Session
}

// Module is a self-contained feature of the bot.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// Commands returns the slash commands this module provides.
	Commands() []*discordgo.ApplicationCommand

	// Handlers returns a map of command names to their handlers.
	Handlers() map[string]InteractionHandler

	// EventHandlers returns gateway event handlers for this module.
	EventHandlers() []EventHandler

	// Init initializes the module with the provided dependencies.
	Init(deps ModuleDependencies) error

	// Shutdown gracefully shuts down the module.
	Shutdown() error
}
