package orchestrator

import (
	"errors"
	"sync"

	"github.com/nepbay/voice-search/internal/observability"
)

// ErrSuperseded marks a search whose session started a newer search while
// this one was still running. The caller drops the result instead of sending
// a stale response to the client.
var ErrSuperseded = errors.New("search superseded by a newer search in the session")

// supersedeGuard tracks a generation counter per session key. Each search
// bumps the generation at start and checks it before responding; a mismatch
// means a newer search owns the session.
type supersedeGuard struct {
	mu          sync.Mutex
	generations map[string]uint64
}

func newSupersedeGuard() *supersedeGuard {
	return &supersedeGuard{generations: make(map[string]uint64)}
}

// begin registers a new search for the session and returns its generation.
// Sessions without a key are never superseded.
func (g *supersedeGuard) begin(sessionKey string) uint64 {
	if sessionKey == "" {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generations[sessionKey]++
	return g.generations[sessionKey]
}

// check reports whether the search holding gen is still the session's latest.
func (g *supersedeGuard) check(sessionKey string, gen uint64) error {
	if sessionKey == "" {
		return nil
	}
	g.mu.Lock()
	current := g.generations[sessionKey]
	g.mu.Unlock()

	if gen != current {
		observability.SupersededSearches.Inc()
		return ErrSuperseded
	}
	return nil
}

// release drops the session entry once its latest search finished, keeping
// the map from growing with dead sessions.
func (g *supersedeGuard) release(sessionKey string, gen uint64) {
	if sessionKey == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generations[sessionKey] == gen {
		delete(g.generations, sessionKey)
	}
}
