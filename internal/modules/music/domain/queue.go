package domain

// Queue holds the ordered tracks for one guild using an index-based model:
// instead of discarding tracks as they finish, a cursor advances through the
// list. This keeps already-played tracks around so "previous" can step back.
//
// Queue is a plain data structure. Callers are responsible for
// synchronization.
type Queue struct {
	tracks []Track
	index  int
	paused bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{tracks: make([]Track, 0)}
}

// Len returns the total number of tracks, played and pending.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty reports whether the queue holds no tracks at all.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// Current returns the track at the cursor, or nil if the queue is empty.
func (q *Queue) Current() *Track {
	if q.IsEmpty() {
		return nil
	}
	t := q.tracks[q.index]
	return &t
}

// Upcoming returns a copy of the tracks after the cursor. Empty when the
// queue is empty or the cursor is at the last track.
func (q *Queue) Upcoming() []Track {
	if q.index+1 >= len(q.tracks) {
		return []Track{}
	}
	rest := q.tracks[q.index+1:]
	out := make([]Track, len(rest))
	copy(out, rest)
	return out
}

// HasNext reports whether a track follows the cursor.
func (q *Queue) HasNext() bool {
	return q.index+1 < len(q.tracks)
}

// HasPrevious reports whether a track precedes the cursor.
func (q *Queue) HasPrevious() bool {
	return !q.IsEmpty() && q.index > 0
}

// Append adds tracks to the end of the queue.
func (q *Queue) Append(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// PeekNext returns the track after the cursor without moving it, or nil if
// no track follows.
func (q *Queue) PeekNext() *Track {
	if !q.HasNext() {
		return nil
	}
	t := q.tracks[q.index+1]
	return &t
}

// PeekPrevious returns the track before the cursor without moving it, or nil
// if no track precedes.
func (q *Queue) PeekPrevious() *Track {
	if !q.HasPrevious() {
		return nil
	}
	t := q.tracks[q.index-1]
	return &t
}

// Skip moves the cursor forward regardless of repeat mode.
// Returns the new current track, or nil if the cursor is already at the last
// track (the cursor is left unchanged in that case).
func (q *Queue) Skip() *Track {
	if !q.HasNext() {
		return nil
	}
	q.index++
	t := q.tracks[q.index]
	return &t
}

// Previous moves the cursor one track back.
// Returns the new current track, or nil if there is no previous track.
func (q *Queue) Previous() *Track {
	if !q.HasPrevious() {
		return nil
	}
	q.index--
	t := q.tracks[q.index]
	return &t
}

// Advance moves the cursor after a track finished, honoring the repeat mode:
// RepeatTrack keeps the cursor in place, RepeatQueue wraps past the end,
// RepeatNone returns nil at the end of the queue.
func (q *Queue) Advance(mode RepeatMode) *Track {
	if q.IsEmpty() {
		return nil
	}

	switch mode {
	case RepeatTrack:
		// Cursor stays put, same track plays again.

	case RepeatQueue:
		if q.HasNext() {
			q.index++
		} else {
			q.index = 0
		}

	default:
		if !q.HasNext() {
			return nil
		}
		q.index++
	}

	t := q.tracks[q.index]
	return &t
}

// Paused reports whether playback of this queue is paused.
func (q *Queue) Paused() bool {
	return q.paused
}

// SetPaused sets the paused flag.
func (q *Queue) SetPaused(paused bool) {
	q.paused = paused
}

// Clear removes all tracks and resets the cursor and paused flag.
func (q *Queue) Clear() {
	q.tracks = q.tracks[:0]
	q.index = 0
	q.paused = false
}
