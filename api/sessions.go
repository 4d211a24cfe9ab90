/*
sessions.go - Allocation sessions

PURPOSE:
  Holds one allocation.Engine per dashboard tab. The engine itself is not
  safe for concurrent use, so every access goes through Session.Do, which
  serializes callers with a per-session mutex.

LIFECYCLE:
  Create -> Do (any number) -> Delete or swept after TTL of inactivity.
  See sweeper.go for the background eviction.
*/
package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heatx/energy-engine/allocation"
)

// ErrSessionNotFound is returned for an unknown or evicted session id.
var ErrSessionNotFound = errors.New("allocation session not found")

// Session is one user's allocation in progress.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	engine   *allocation.Engine
	clock    allocation.Clock
	lastSeen time.Time
}

// Do runs fn with exclusive access to the session's engine and marks the
// session as active.
func (s *Session) Do(fn func(e *allocation.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.clock.Now()
	return fn(s.engine)
}

// State returns a snapshot of the derived state.
func (s *Session) State() allocation.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionRegistry indexes live sessions by id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    allocation.Clock
	opts     []allocation.Option
}

// NewSessionRegistry creates an empty registry. Engines it creates get opts;
// clock drives both idle tracking and report timestamps.
func NewSessionRegistry(clock allocation.Clock, opts ...allocation.Option) *SessionRegistry {
	if clock == nil {
		clock = allocation.SystemClock
	}
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		clock:    clock,
		opts:     append([]allocation.Option{allocation.WithClock(clock)}, opts...),
	}
}

// Create opens a session starting from w.
func (r *SessionRegistry) Create(w allocation.Weights) *Session {
	now := r.clock.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		engine:    allocation.NewEngineWithWeights(w, r.opts...),
		clock:     r.clock,
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get looks up a session and marks it as active.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.clock.Now())
	return s, nil
}

// Delete removes a session. Returns false if it did not exist.
func (r *SessionRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Sweep evicts sessions idle for longer than ttl and returns their ids.
// Idleness is read without holding the registry lock, so a session busy
// in Do (a finalize writing to the archive, say) never stalls Get or Create.
func (r *SessionRegistry) Sweep(ttl time.Duration) []string {
	cutoff := r.clock.Now().Add(-ttl)

	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	var idle []*Session
	for _, s := range candidates {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	if len(idle) == 0 {
		return nil
	}

	var evicted []string
	r.mu.Lock()
	for _, s := range idle {
		if r.sessions[s.ID] == s {
			delete(r.sessions, s.ID)
			evicted = append(evicted, s.ID)
		}
	}
	r.mu.Unlock()

	sort.Strings(evicted)
	return evicted
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
