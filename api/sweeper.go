/*
sweeper.go - Idle session eviction

PURPOSE:
  Periodically removes allocation sessions nobody has touched for longer
  than the configured TTL. Unfinalized allocations are simply dropped;
  finalized bills are already in the report archive.

DESIGN:
  - Runs on a cron schedule (robfig/cron syntax, e.g. "@every 5m")
  - Each run is a single Registry.Sweep call
  - Stop waits for an in-flight sweep to finish

USAGE:
  sweeper := NewSessionSweeper(registry, 30*time.Minute, "@every 5m", log)
  if err := sweeper.Start(); err != nil { ... }
  // ... later
  sweeper.Stop()

SEE ALSO:
  - sessions.go: SessionRegistry.Sweep
*/
package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SessionSweeper evicts idle sessions on a schedule.
type SessionSweeper struct {
	Sessions *SessionRegistry
	TTL      time.Duration
	Schedule string

	cron    *cron.Cron
	log     zerolog.Logger
	mu      sync.Mutex
	running bool
}

// NewSessionSweeper creates a sweeper. It does nothing until Start.
func NewSessionSweeper(sessions *SessionRegistry, ttl time.Duration, schedule string, log zerolog.Logger) *SessionSweeper {
	return &SessionSweeper{
		Sessions: sessions,
		TTL:      ttl,
		Schedule: schedule,
		log:      log.With().Str("component", "session_sweeper").Logger(),
	}
}

// Start registers the sweep job and starts the cron runner.
func (s *SessionSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.Schedule, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.Schedule, err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info().
		Str("schedule", s.Schedule).
		Dur("ttl", s.TTL).
		Msg("Session sweeper started")
	return nil
}

// Stop halts the cron runner and waits for a running sweep.
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info().Msg("Session sweeper stopped")
}

// RunOnce sweeps immediately and returns how many sessions were evicted.
func (s *SessionSweeper) RunOnce() int {
	evicted := s.Sessions.Sweep(s.TTL)
	if len(evicted) > 0 {
		s.log.Info().
			Int("evicted", len(evicted)).
			Int("remaining", s.Sessions.Len()).
			Msg("Idle sessions evicted")
	}
	return len(evicted)
}
