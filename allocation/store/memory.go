// Package store provides ReportStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/heatx/energy-engine/allocation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	reports []allocation.ArchivedReport // ordered newest first
	byID    map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// SaveReport adds a report. Append-only.
func (m *Memory) SaveReport(_ context.Context, r allocation.ArchivedReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[r.ID]; exists {
		return allocation.ErrDuplicateReport
	}

	// Binary search for insertion point, newest first
	i := sort.Search(len(m.reports), func(i int) bool {
		return m.reports[i].CreatedAt.Before(r.CreatedAt)
	})

	m.reports = append(m.reports, allocation.ArchivedReport{})
	copy(m.reports[i+1:], m.reports[i:])
	m.reports[i] = r

	for j := i; j < len(m.reports); j++ {
		m.byID[m.reports[j].ID] = j
	}
	return nil
}

func (m *Memory) GetReport(_ context.Context, id string) (*allocation.ArchivedReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return nil, allocation.ErrReportNotFound
	}
	r := m.reports[i]
	return &r, nil
}

func (m *Memory) ListReports(_ context.Context, limit int) ([]allocation.ArchivedReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.reports)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]allocation.ArchivedReport, n)
	copy(out, m.reports[:n])
	return out, nil
}
