// Package engine wraps the external playback engine behind a two-state
// lifecycle and an exception-free adapter that turns every engine outcome
// into a uniform Result.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DialFunc establishes a connection to the playback engine.
type DialFunc func() (Backend, error)

// ErrNoDial is returned when the engine has no way to reach a backend.
var ErrNoDial = errors.New("no engine dial function configured")

// Engine is the explicit Uninitialized/Ready lifecycle around the playback
// backend. The backend is dialed on the gateway ready event with one
// supervised retry; callers that find the engine uninitialized get exactly
// one lazy re-initialization attempt via Acquire.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	dial    DialFunc
}

// New creates an uninitialized Engine.
func New(dial DialFunc) *Engine {
	return &Engine{dial: dial}
}

// SetDial replaces the dial function. Used when the dial closure can only be
// built after the gateway session exists.
func (e *Engine) SetDial(dial DialFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dial = dial
}

// Ready reports whether a backend connection is established.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend != nil
}

// Current returns the backend without attempting initialization.
func (e *Engine) Current() (Backend, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend, e.backend != nil
}

// Acquire returns the backend, dialing it first if the engine is still
// uninitialized. At most one dial attempt is made per call.
func (e *Engine) Acquire() (Backend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend != nil {
		return e.backend, nil
	}
	if e.dial == nil {
		return nil, ErrNoDial
	}

	backend, err := e.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback engine: %w", err)
	}
	e.backend = backend
	return backend, nil
}

// Initialize dials the backend if needed.
func (e *Engine) Initialize() error {
	_, err := e.Acquire()
	return err
}

// InitializeWithRetry dials the backend and, on failure, schedules exactly
// one retry after the given delay. Used from the gateway ready event so a
// slow engine does not keep the bot from coming up.
func (e *Engine) InitializeWithRetry(delay time.Duration) {
	if err := e.Initialize(); err != nil {
		slog.Error("playback engine initialization failed, scheduling retry",
			"delay", delay, "error", err)
		time.AfterFunc(delay, func() {
			if err := e.Initialize(); err != nil {
				slog.Error("playback engine initialization retry failed", "error", err)
				return
			}
			slog.Info("playback engine initialization retry succeeded")
		})
		return
	}
	slog.Info("playback engine initialized")
}

// Close shuts down the backend connection if one exists.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend != nil {
		e.backend.Close()
		e.backend = nil
	}
}
