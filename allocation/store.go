/*
store.go - Persistence interface for finalized reports

PURPOSE:
  The engine itself never persists anything. Hosts that keep a history of
  issued bills (the HTTP API, the CLI) archive them through ReportStore.

APPEND-ONLY CONTRACT:
  Reports are immutable, so the archive has no Update or Delete. A bill that
  was issued in error is superseded by finalizing a new one.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite archive
  - allocation/store/memory.go: In-memory for testing
*/
package allocation

import (
	"context"
	"time"
)

// ArchivedReport is a report plus the bookkeeping of where it came from.
type ArchivedReport struct {
	ID        string
	SessionID string
	Report    Report
	CreatedAt time.Time
}

// ReportStore archives finalized reports.
type ReportStore interface {
	// SaveReport persists a report. IDs must be unique.
	SaveReport(ctx context.Context, r ArchivedReport) error

	// GetReport returns ErrReportNotFound for an unknown ID.
	GetReport(ctx context.Context, id string) (*ArchivedReport, error)

	// ListReports returns the newest reports first. limit <= 0 means all.
	ListReports(ctx context.Context, limit int) ([]ArchivedReport, error)
}
