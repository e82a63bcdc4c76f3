package domain

// RepeatMode controls how the queue advances when a track ends.
type RepeatMode int

const (
	// RepeatNone plays the queue front to back once.
	RepeatNone RepeatMode = iota
	// RepeatTrack replays the current track indefinitely.
	RepeatTrack
	// RepeatQueue wraps back to the first track after the last.
	RepeatQueue
)

// String returns the wire/display name of the mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatTrack:
		return "track"
	case RepeatQueue:
		return "queue"
	default:
		return "none"
	}
}

// ParseRepeatMode converts a mode name to a RepeatMode.
// Unknown names map to RepeatNone.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "track":
		return RepeatTrack
	case "queue":
		return RepeatQueue
	default:
		return RepeatNone
	}
}

// Next cycles none -> track -> queue -> none.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatTrack
	case RepeatTrack:
		return RepeatQueue
	default:
		return RepeatNone
	}
}
