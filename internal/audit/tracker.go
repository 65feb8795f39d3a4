// Package audit keeps the trail of manual review decisions taken on runs
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fefal-etl/internal/debug"
)

// Actions a reviewer can take
const (
	ActionOverride = "override"
	ActionResolve  = "resolve"
)

// Decision is one manual change to the partitions of a run
type Decision struct {
	RunID      string `db:"run_id" json:"run_id"`
	Year       int    `db:"year" json:"year"`
	Action     string `db:"action" json:"action"`
	Line       int    `db:"line" json:"line"`
	RegistryID int64  `db:"registry_id" json:"registry_id"`
	// DisplacedLine is the canonical row an override moved to the duplicates
	DisplacedLine *int      `db:"displaced_line" json:"displaced_line,omitempty"`
	Reviewer      string    `db:"reviewer" json:"reviewer,omitempty"`
	Note          string    `db:"note" json:"note,omitempty"`
	DecidedAt     time.Time `db:"decided_at" json:"decided_at"`
}

// Recorder stores and lists decisions
type Recorder interface {
	Record(ctx context.Context, d Decision) error
	ForRun(ctx context.Context, runID string) ([]Decision, error)
}

const schema = `CREATE TABLE IF NOT EXISTS review_decisions (
	run_id         TEXT NOT NULL,
	year           INTEGER NOT NULL,
	action         TEXT NOT NULL,
	line           INTEGER NOT NULL,
	registry_id    BIGINT NOT NULL,
	displaced_line INTEGER,
	reviewer       TEXT NOT NULL DEFAULT '',
	note           TEXT NOT NULL DEFAULT '',
	decided_at     TIMESTAMP NOT NULL
)`

// Tracker records decisions in the review_decisions table
type Tracker struct {
	db         *sqlx.DB
	localDebug bool
	now        func() time.Time
}

// NewTracker creates a new audit tracker
func NewTracker(db *sqlx.DB) *Tracker {
	return &Tracker{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SetDebug enables debug output
func (t *Tracker) SetDebug(enabled bool) { t.localDebug = enabled }

// Migrate creates the decisions table when it does not exist
func (t *Tracker) Migrate(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Record saves a decision to the audit trail
func (t *Tracker) Record(ctx context.Context, d Decision) error {
	debug.DebugHeader(t.localDebug)
	defer debug.DebugFooter(t.localDebug)

	if err := validate(d); err != nil {
		return err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = t.now()
	}
	debug.DebugOutput(t.localDebug, "Recording %s for run %s: line %d -> %d", d.Action, d.RunID, d.Line, d.RegistryID)

	var displaced sql.NullInt64
	if d.DisplacedLine != nil {
		displaced = sql.NullInt64{Int64: int64(*d.DisplacedLine), Valid: true}
	}
	_, err := t.db.ExecContext(ctx, t.db.Rebind(`
		INSERT INTO review_decisions (run_id, year, action, line, registry_id, displaced_line, reviewer, note, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), d.RunID, d.Year, d.Action, d.Line, d.RegistryID, displaced, d.Reviewer, d.Note, d.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// ForRun lists the decisions of a run in the order they were taken
func (t *Tracker) ForRun(ctx context.Context, runID string) ([]Decision, error) {
	var out []Decision
	err := t.db.SelectContext(ctx, &out, t.db.Rebind(`
		SELECT run_id, year, action, line, registry_id, displaced_line, reviewer, note, decided_at
		FROM review_decisions WHERE run_id = ? ORDER BY decided_at, line
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	return out, nil
}

func validate(d Decision) error {
	switch {
	case d.RunID == "":
		return fmt.Errorf("decision without run id")
	case d.Action != ActionOverride && d.Action != ActionResolve:
		return fmt.Errorf("unknown review action %q", d.Action)
	}
	return nil
}

// MemoryTracker keeps decisions in process
type MemoryTracker struct {
	mu        sync.Mutex
	decisions []Decision
}

// NewMemoryTracker creates an empty in-process trail
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

func (m *MemoryTracker) Record(ctx context.Context, d Decision) error {
	if err := validate(d); err != nil {
		return err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *MemoryTracker) ForRun(ctx context.Context, runID string) ([]Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Decision
	for _, d := range m.decisions {
		if d.RunID == runID {
			out = append(out, d)
		}
	}
	return out, nil
}
