package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// Reply lifecycle errors.
var (
	// ErrAlreadyResponded is returned when a handler attempts a second
	// initial response (reply or defer) to the same interaction.
	ErrAlreadyResponded = errors.New("interaction already responded to")

	// ErrNotDeferred is returned when Edit is called before Defer.
	ErrNotDeferred = errors.New("interaction was not deferred")

	// ErrAlreadyEdited is returned on a second edit of the deferred reply.
	ErrAlreadyEdited = errors.New("deferred reply already edited")
)

// Responder abstracts the interaction reply lifecycle: exactly one initial
// response (an immediate reply or a deferral), and at most one follow-up edit
// after a deferral. The abstraction keeps handlers testable without a live
// Discord connection and keeps the acknowledge-then-edit discipline in one
// place.
type Responder interface {
	// Respond sends the single immediate reply.
	Respond(content string) error

	// RespondEphemeral sends the single immediate reply, visible only to the
	// invoking user.
	RespondEphemeral(content string) error

	// Defer acknowledges the interaction so slow work can follow.
	Defer() error

	// Edit replaces the deferred acknowledgement with the final reply.
	Edit(content string) error

	// Acknowledged reports whether any initial response has been sent.
	Acknowledged() bool

	// Deferred reports whether the initial response was a deferral.
	Deferred() bool
}

// replyState tracks per-interaction reply transitions and rejects protocol
// violations before they reach the transport.
type replyState struct {
	replied  bool
	deferred bool
	edited   bool
}

func (s *replyState) beginRespond() error {
	if s.replied || s.deferred {
		return ErrAlreadyResponded
	}
	s.replied = true
	return nil
}

func (s *replyState) beginDefer() error {
	if s.replied || s.deferred {
		return ErrAlreadyResponded
	}
	s.deferred = true
	return nil
}

func (s *replyState) beginEdit() error {
	if !s.deferred {
		return ErrNotDeferred
	}
	if s.edited {
		return ErrAlreadyEdited
	}
	s.edited = true
	return nil
}

// DiscordResponder implements Responder against a live Discord session.
type DiscordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	state       replyState
}

// NewDiscordResponder creates a DiscordResponder for one interaction.
func NewDiscordResponder(s *discordgo.Session, i *discordgo.Interaction) *DiscordResponder {
	return &DiscordResponder{session: s, interaction: i}
}

// Respond sends the initial reply.
func (r *DiscordResponder) Respond(content string) error {
	if err := r.state.beginRespond(); err != nil {
		return err
	}
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

// RespondEphemeral sends the initial reply visible only to the invoker.
func (r *DiscordResponder) RespondEphemeral(content string) error {
	if err := r.state.beginRespond(); err != nil {
		return err
	}
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// Defer acknowledges the interaction.
func (r *DiscordResponder) Defer() error {
	if err := r.state.beginDefer(); err != nil {
		return err
	}
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

// Edit replaces the deferred acknowledgement with the final reply.
func (r *DiscordResponder) Edit(content string) error {
	if err := r.state.beginEdit(); err != nil {
		return err
	}
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return err
}

// Acknowledged reports whether any initial response has been sent.
func (r *DiscordResponder) Acknowledged() bool {
	return r.state.replied || r.state.deferred
}

// Deferred reports whether Defer was the initial response.
func (r *DiscordResponder) Deferred() bool {
	return r.state.deferred
}

// MockResponder is a test double that records the reply sequence while
// enforcing the same transition rules as the Discord implementation.
type MockResponder struct {
	state      replyState
	Replies    []string
	Ephemerals []string
	Edits      []string
	Err        error
}

// Respond records an immediate reply.
func (m *MockResponder) Respond(content string) error {
	if err := m.state.beginRespond(); err != nil {
		return err
	}
	m.Replies = append(m.Replies, content)
	return m.Err
}

// RespondEphemeral records an ephemeral reply.
func (m *MockResponder) RespondEphemeral(content string) error {
	if err := m.state.beginRespond(); err != nil {
		return err
	}
	m.Ephemerals = append(m.Ephemerals, content)
	return m.Err
}

// Defer records the deferral.
func (m *MockResponder) Defer() error {
	if err := m.state.beginDefer(); err != nil {
		return err
	}
	return m.Err
}

// Edit records the follow-up edit.
func (m *MockResponder) Edit(content string) error {
	if err := m.state.beginEdit(); err != nil {
		return err
	}
	m.Edits = append(m.Edits, content)
	return m.Err
}

// Acknowledged reports whether any initial response was recorded.
func (m *MockResponder) Acknowledged() bool {
	return m.state.replied || m.state.deferred
}

// Deferred reports whether the interaction was deferred.
func (m *MockResponder) Deferred() bool {
	return m.state.deferred
}
