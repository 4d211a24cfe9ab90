/*
Package allocation provides the sector allocation engine.

PURPOSE:
  Recovered waste-heat power is distributed across three fixed sectors.
  Operators set a raw weight per sector; the engine derives a normalized
  percentage distribution, classifies the aggregate (balanced, over or
  under allocated) and gates the finalize action that produces a bill.

KEY CONCEPTS IN THIS FILE (types.go):
  - Sector: one of Livelihoods, Industries, Govt Projects
  - Weights: one integer per sector (raw or normalized)
  - Status: the three-valued classification of a total
  - State: derived view of the engine (raw, total, normalized, status)

DESIGN PRINCIPLES:
  1. Derived state is recomputed on every read, never cached
  2. Raw weights are clamped to [0, 100] at the boundary
  3. Normalization uses exact decimal arithmetic (see normalize.go)
  4. The engine does no I/O; clock and logger are injected

USAGE:
  engine := allocation.NewEngine()
  _ = engine.SetWeight(allocation.Livelihoods, 50)
  state := engine.State()
  if state.Balanced() {
      report, _ := engine.Finalize()
  }

SEE ALSO:
  - engine.go: Engine operations
  - normalize.go: Normalization and classification
  - report.go: Finalized bill
  - errors.go: Error taxonomy
*/
package allocation

import (
	"fmt"
	"strings"
)

// =============================================================================
// SECTOR
// =============================================================================

// Sector identifies one of the three allocation targets.
type Sector string

const (
	Livelihoods  Sector = "livelihoods"
	Industries   Sector = "industries"
	GovtProjects Sector = "govt_projects"
)

// Sectors lists every sector in display order.
var Sectors = []Sector{Livelihoods, Industries, GovtProjects}

// Label returns the human readable sector name.
func (s Sector) Label() string {
	switch s {
	case Livelihoods:
		return "Livelihoods"
	case Industries:
		return "Industries"
	case GovtProjects:
		return "Govt Projects"
	}
	return string(s)
}

// Color returns the chart color used by the dashboard. Presentation only.
func (s Sector) Color() string {
	switch s {
	case Livelihoods:
		return "#22c55e"
	case Industries:
		return "#3b82f6"
	case GovtProjects:
		return "#facc15"
	}
	return ""
}

func (s Sector) Valid() bool {
	return s == Livelihoods || s == Industries || s == GovtProjects
}

// ParseSector accepts a sector identifier or its label, case-insensitively.
func ParseSector(v string) (Sector, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "livelihoods":
		return Livelihoods, nil
	case "industries":
		return Industries, nil
	case "govt_projects", "government_projects", "govt":
		return GovtProjects, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSector, v)
}

// =============================================================================
// WEIGHTS
// =============================================================================

// Weights holds one integer per sector. Used for raw weights and for
// normalized percentages alike.
type Weights struct {
	Livelihoods  int
	Industries   int
	GovtProjects int
}

// DefaultWeights are the initial slider positions of the allocation screen.
var DefaultWeights = Weights{Livelihoods: 40, Industries: 35, GovtProjects: 25}

// Get returns the value for a sector. Unknown sectors read as zero.
func (w Weights) Get(s Sector) int {
	switch s {
	case Livelihoods:
		return w.Livelihoods
	case Industries:
		return w.Industries
	case GovtProjects:
		return w.GovtProjects
	}
	return 0
}

func (w *Weights) set(s Sector, v int) {
	switch s {
	case Livelihoods:
		w.Livelihoods = v
	case Industries:
		w.Industries = v
	case GovtProjects:
		w.GovtProjects = v
	}
}

func (w Weights) Sum() int {
	return w.Livelihoods + w.Industries + w.GovtProjects
}

// Shares expands the weights into ordered per-sector entries.
func (w Weights) Shares() []Share {
	shares := make([]Share, len(Sectors))
	for i, s := range Sectors {
		shares[i] = Share{Sector: s, Label: s.Label(), Color: s.Color(), Percent: w.Get(s)}
	}
	return shares
}

// Share is a single sector's value with its presentation attributes.
type Share struct {
	Sector  Sector
	Label   string
	Color   string
	Percent int
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusBalanced       Status = "balanced"
	StatusOverAllocated  Status = "over_allocated"
	StatusUnderAllocated Status = "under_allocated"
)

// =============================================================================
// STATE - Derived view, recomputed on every read
// =============================================================================

type State struct {
	Raw        Weights
	Total      int
	Normalized Weights
	Status     Status
}

func (s State) Balanced() bool { return s.Status == StatusBalanced }

// Adjustment is the amount to add (positive) or remove (negative) to reach 100.
func (s State) Adjustment() int { return Target - s.Total }

// Hint is the banner text shown while the allocation is not balanced.
func (s State) Hint() string {
	switch s.Status {
	case StatusOverAllocated:
		return fmt.Sprintf("%d%% allocated, reduce by %d%% to balance.", s.Total, -s.Adjustment())
	case StatusUnderAllocated:
		return fmt.Sprintf("%d%% allocated, add %d%% to balance.", s.Total, s.Adjustment())
	}
	return ""
}
