// Package server owns the process-wide page globals and the HTTP server
// lifecycle.
package server

import (
	"sync"
	"sync/atomic"
)

// Globals is state shared by every request for the life of the process:
// the stop flag and a free-form note pages may display. Create it once in
// main and pass it to whoever needs it.
type Globals struct {
	stopping atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}

	mu   sync.RWMutex
	note string
}

// NewGlobals returns Globals with no stop requested.
func NewGlobals() *Globals {
	return &Globals{stopped: make(chan struct{})}
}

// RequestStop asks the server to shut down gracefully. Repeated calls are
// harmless.
func (g *Globals) RequestStop() {
	g.stopping.Store(true)
	g.stopOnce.Do(func() { close(g.stopped) })
}

// StopRequested reports whether RequestStop was called.
func (g *Globals) StopRequested() bool {
	return g.stopping.Load()
}

// Stopped is closed by the first RequestStop.
func (g *Globals) Stopped() <-chan struct{} {
	return g.stopped
}

// Note returns the current note.
func (g *Globals) Note() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.note
}

// SetNote replaces the note.
func (g *Globals) SetNote(note string) {
	g.mu.Lock()
	g.note = note
	g.mu.Unlock()
}
