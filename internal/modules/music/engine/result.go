package engine

import (
	"github.com/nozuki/melobot/internal/modules/music/domain"
)

// Result is the uniform outcome of every adapter operation. When Success is
// false, Message holds a human-readable explanation; no adapter operation
// ever returns an error or panics across this boundary.
type Result struct {
	Success      bool
	Message      string
	Track        *domain.Track
	Volume       int
	AddedToQueue bool
}

// NowPlayingInfo is a total snapshot of a guild's playback state. Every field
// carries its zero value when nothing is playing.
type NowPlayingInfo struct {
	Track       *domain.Track
	IsPlaying   bool
	QueueLength int
	Volume      int
	Repeat      domain.RepeatMode
}

// QueueView is a read-only projection of a guild's queue, recomputed per
// request so it never goes stale.
type QueueView struct {
	Current  *domain.Track
	Upcoming []domain.Track
	Length   int
}

func failure(message string) Result {
	return Result{Message: message}
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}
