/*
engine.go - Allocation engine operations

OPERATIONS:
  SetWeight(sector, value)  clamp to [0, 100] and replace the raw weight
  State()                   derived state; pure, never mutates
  CanFinalize()             true iff the total is exactly 100
  Finalize()                re-validate and build the bill
  Commit(exporter, nav)     Finalize, then hand off the bill and proceed
  Reset()                   back to the default 40/35/25

CONCURRENCY:
  An Engine is NOT safe for concurrent use. It assumes one logical caller
  (one session, one event loop). Hosts with several writers must serialize
  access themselves; api.Session does this with a mutex.

  Finalize reads the weights once and both checks and builds the report
  from that single snapshot, so nothing can interleave between check and act.

DETERMINISM:
  The same sequence of SetWeight calls always yields the same State.
  Reports take their timestamp from the injected Clock.
*/
package allocation

import (
	"github.com/rs/zerolog"
)

// Exporter receives a finalized report. Fire-and-forget from the engine's
// side: implementations handle their own failures.
type Exporter interface {
	ExportReport(Report)
}

// Navigator is signalled once a finalize succeeds.
type Navigator interface {
	Proceed()
}

type Engine struct {
	weights Weights
	clock   Clock
	log     zerolog.Logger
}

type Option func(*Engine)

// WithClock sets the clock used to stamp reports.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger used for clamp notices.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine at DefaultWeights.
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithWeights(DefaultWeights, opts...)
}

// NewEngineWithWeights creates an engine starting from w. Out-of-range
// values are clamped like any SetWeight call.
func NewEngineWithWeights(w Weights, opts ...Option) *Engine {
	e := &Engine{clock: SystemClock, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	for _, s := range Sectors {
		e.apply(s, w.Get(s))
	}
	return e
}

// SetWeight replaces a sector's raw weight. Values outside [0, 100] are
// clamped; the only error is ErrUnknownSector.
func (e *Engine) SetWeight(s Sector, value int) error {
	if !s.Valid() {
		return ErrUnknownSector
	}
	e.apply(s, value)
	return nil
}

func (e *Engine) apply(s Sector, value int) {
	clamped := Clamp(value)
	if clamped != value {
		e.log.Debug().
			Err(&OutOfRangeWeightError{Sector: s, Value: value, Clamped: clamped}).
			Str("sector", string(s)).
			Msg("Weight clamped")
	}
	e.weights.set(s, clamped)
}

// Weight returns a sector's raw weight.
func (e *Engine) Weight(s Sector) int {
	return e.weights.Get(s)
}

func (e *Engine) State() State {
	return stateOf(e.weights)
}

func stateOf(raw Weights) State {
	normalized, status := Normalize(raw)
	return State{
		Raw:        raw,
		Total:      raw.Sum(),
		Normalized: normalized,
		Status:     status,
	}
}

func (e *Engine) CanFinalize() bool {
	return e.State().Balanced()
}

// Finalize builds the bill. Returns *NotBalancedError unless the total is 100.
func (e *Engine) Finalize() (Report, error) {
	state := stateOf(e.weights)
	if !state.Balanced() {
		return Report{}, &NotBalancedError{Total: state.Total, Status: state.Status}
	}
	return newReport(state.Normalized, e.clock.Now()), nil
}

// Commit finalizes, then passes the report to exp and signals nav. Either
// collaborator may be nil. Neither is called when Finalize fails.
func (e *Engine) Commit(exp Exporter, nav Navigator) (Report, error) {
	report, err := e.Finalize()
	if err != nil {
		return Report{}, err
	}
	if exp != nil {
		exp.ExportReport(report)
	}
	if nav != nil {
		nav.Proceed()
	}
	return report, nil
}

// Reset restores DefaultWeights.
func (e *Engine) Reset() {
	e.weights = DefaultWeights
}
