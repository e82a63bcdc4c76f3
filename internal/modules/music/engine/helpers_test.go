package engine

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"

	"github.com/nozuki/melobot/internal/modules/music/domain"
	"github.com/nozuki/melobot/internal/modules/music/session"
)

func testTrack(id string) domain.Track {
	return domain.Track{
		ID:       id,
		Title:    "Track " + id,
		Uploader: "Uploader",
		URL:      "https://www.youtube.com/watch?v=" + id,
	}
}

// fakeBackend records calls and returns configured errors.
type fakeBackend struct {
	mu sync.Mutex

	joinErr   error
	leaveErr  error
	playErr   error
	stopErr   error
	pauseErr  error
	volumeErr error

	joins   []snowflake.ID
	leaves  []snowflake.ID
	played  []domain.Track
	stops   []snowflake.ID
	pauses  []bool
	volumes []int
	closed  bool
}

func (f *fakeBackend) Join(_ context.Context, guildID, _ snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, guildID)
	return nil
}

func (f *fakeBackend) Leave(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leaveErr != nil {
		return f.leaveErr
	}
	f.leaves = append(f.leaves, guildID)
	return nil
}

func (f *fakeBackend) Play(_ context.Context, _ snowflake.ID, track domain.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, track)
	return nil
}

func (f *fakeBackend) Stop(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops = append(f.stops, guildID)
	return nil
}

func (f *fakeBackend) SetPaused(_ context.Context, _ snowflake.ID, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.pauses = append(f.pauses, paused)
	return nil
}

func (f *fakeBackend) SetVolume(_ context.Context, _ snowflake.ID, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.volumeErr != nil {
		return f.volumeErr
	}
	f.volumes = append(f.volumes, volume)
	return nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeBackend) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

func (f *fakeBackend) lastPlayed() *domain.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.played) == 0 {
		return nil
	}
	t := f.played[len(f.played)-1]
	return &t
}

// newTestAdapter wires an Adapter to a fake backend through a ready engine.
func newTestAdapter(backend *fakeBackend) (*Adapter, *session.Store) {
	sessions := session.NewStore()
	eng := New(func() (Backend, error) { return backend, nil })
	return NewAdapter(eng, sessions), sessions
}
