// Package session holds per-guild playback preferences that outlive
// individual queues: volume and repeat mode. State is process-lifetime only;
// a voice session cannot outlive the process anyway.
package session

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/nozuki/melobot/internal/modules/music/domain"
)

// DefaultVolume is applied to guilds that never set a volume.
const DefaultVolume = 50

// Session is a snapshot of one guild's preferences.
type Session struct {
	Volume int
	Repeat domain.RepeatMode
}

// Store maps guild IDs to their Session, creating defaults on first access.
// There is no eviction.
type Store struct {
	mu       sync.RWMutex
	sessions map[snowflake.ID]Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[snowflake.ID]Session)}
}

// Get returns the guild's session, creating it with defaults if absent.
func (s *Store) Get(guildID snowflake.ID) Session {
	s.mu.RLock()
	sess, ok := s.sessions[guildID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[guildID]; ok {
		return sess
	}
	sess = Session{Volume: DefaultVolume, Repeat: domain.RepeatNone}
	s.sessions[guildID] = sess
	return sess
}

// SetVolume stores the volume for a guild. The value is stored as given;
// clamping is the caller's concern.
func (s *Store) SetVolume(guildID snowflake.ID, volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[guildID]
	if !ok {
		sess = Session{Volume: DefaultVolume, Repeat: domain.RepeatNone}
	}
	sess.Volume = volume
	s.sessions[guildID] = sess
}

// SetRepeat stores the repeat mode for a guild.
func (s *Store) SetRepeat(guildID snowflake.ID, mode domain.RepeatMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[guildID]
	if !ok {
		sess = Session{Volume: DefaultVolume, Repeat: domain.RepeatNone}
	}
	sess.Repeat = mode
	s.sessions[guildID] = sess
}

// Count returns the number of guilds with stored preferences.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
