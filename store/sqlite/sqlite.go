/*
Package sqlite provides a SQLite-backed archive of finalized allocation bills.

PURPOSE:
  Implements allocation.ReportStore using SQLite so issued bills survive a
  restart and can be downloaded again from the reports endpoints.

APPEND-ONLY ENFORCEMENT:
  Reports are immutable:
  - No UPDATE statements on the reports table
  - No DELETE outside of Reset (dev only)

KEY TABLES:
  reports: one row per finalized bill

PAYLOAD ENCODING:
  The report itself is stored as a msgpack blob (reportPayload). The
  queryable columns (session, timestamps, percentages) are denormalized
  next to it for listing without decoding.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode.

USAGE:
  store, err := sqlite.New("./data/heatx.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - allocation/store.go: Interface definition
  - allocation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/heatx/energy-engine/allocation"
)

// Store implements allocation.ReportStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Finalized bills (append-only)
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		livelihoods INTEGER NOT NULL,
		industries INTEGER NOT NULL,
		govt_projects INTEGER NOT NULL,
		generated_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at
		ON reports(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_reports_session
		ON reports(session_id) WHERE session_id IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// reportPayload is the msgpack shape of a stored report.
type reportPayload struct {
	Livelihoods  int       `msgpack:"livelihoods"`
	Industries   int       `msgpack:"industries"`
	GovtProjects int       `msgpack:"govt_projects"`
	GeneratedAt  time.Time `msgpack:"generated_at"`
}

func encodeReport(r allocation.Report) ([]byte, error) {
	return msgpack.Marshal(reportPayload{
		Livelihoods:  r.Allocation.Livelihoods,
		Industries:   r.Allocation.Industries,
		GovtProjects: r.Allocation.GovtProjects,
		GeneratedAt:  r.GeneratedAt.UTC(),
	})
}

func decodeReport(data []byte) (allocation.Report, error) {
	var p reportPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return allocation.Report{}, fmt.Errorf("decode report payload: %w", err)
	}
	return allocation.Report{
		Allocation: allocation.Weights{
			Livelihoods:  p.Livelihoods,
			Industries:   p.Industries,
			GovtProjects: p.GovtProjects,
		},
		GeneratedAt: p.GeneratedAt.UTC(),
	}, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// SaveReport archives a finalized bill.
func (s *Store) SaveReport(ctx context.Context, r allocation.ArchivedReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := encodeReport(r.Report)
	if err != nil {
		return fmt.Errorf("encode report payload: %w", err)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO reports
		(id, session_id, livelihoods, industries, govt_projects, generated_at, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID,
		nullString(r.SessionID),
		r.Report.Allocation.Livelihoods,
		r.Report.Allocation.Industries,
		r.Report.Allocation.GovtProjects,
		r.Report.GeneratedAt.UTC().UnixNano(),
		createdAt.UTC().UnixNano(),
		payload,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return allocation.ErrDuplicateReport
		}
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves an archived bill by ID.
func (s *Store) GetReport(ctx context.Context, id string) (*allocation.ArchivedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, session_id, created_at, payload FROM reports WHERE id = ?", id)

	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, allocation.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListReports returns archived bills, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]allocation.ArchivedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, created_at, payload FROM reports ORDER BY created_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []allocation.ArchivedReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// CountReports returns how many bills are archived.
func (s *Store) CountReports(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&n)
	return n, err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM reports")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*allocation.ArchivedReport, error) {
	var (
		r         allocation.ArchivedReport
		sessionID sql.NullString
		createdAt int64
		payload   []byte
	)
	if err := row.Scan(&r.ID, &sessionID, &createdAt, &payload); err != nil {
		return nil, err
	}

	report, err := decodeReport(payload)
	if err != nil {
		return nil, err
	}
	r.SessionID = sessionID.String
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.Report = report
	return &r, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
