package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS column_renames (
		original_key   TEXT PRIMARY KEY,
		original_name  TEXT NOT NULL,
		canonical_name TEXT NOT NULL,
		critical       BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at     TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_type_mappings (
		survey_key      TEXT PRIMARY KEY,
		survey_label    TEXT NOT NULL,
		canonical_label TEXT NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS column_groups (
		year        INTEGER PRIMARY KEY,
		groups_json TEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
}

// SQLStore is a MappingStore on PostgreSQL or SQLite. Queries are written
// with ? placeholders and rebound for the driver.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLStore wraps an open database
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the mapping tables when they do not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate mapping store: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) ColumnRenames(ctx context.Context) ([]ColumnRename, error) {
	var out []ColumnRename
	query := `SELECT original_name, canonical_name, critical, updated_at FROM column_renames ORDER BY original_key`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list column renames: %w", err)
	}
	return out, nil
}

func (s *SQLStore) UpsertColumnRename(ctx context.Context, r ColumnRename) error {
	if err := validateRename(r); err != nil {
		return err
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = s.now()
	}

	query := s.db.Rebind(`
		INSERT INTO column_renames (original_key, original_name, canonical_name, critical, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (original_key) DO UPDATE SET
			original_name = excluded.original_name,
			canonical_name = excluded.canonical_name,
			critical = excluded.critical,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		normalize.Text(r.OriginalName), r.OriginalName, r.CanonicalName, r.Critical, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save column rename %q: %w", r.OriginalName, err)
	}
	return nil
}

func (s *SQLStore) EntityTypeMappings(ctx context.Context) ([]EntityTypeMapping, error) {
	var out []EntityTypeMapping
	query := `SELECT survey_label, canonical_label, updated_at FROM entity_type_mappings ORDER BY survey_key`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list entity type mappings: %w", err)
	}
	return out, nil
}

func (s *SQLStore) UpsertEntityTypeMapping(ctx context.Context, m EntityTypeMapping) error {
	if err := validateTypeMapping(m); err != nil {
		return err
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}

	query := s.db.Rebind(`
		INSERT INTO entity_type_mappings (survey_key, survey_label, canonical_label, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (survey_key) DO UPDATE SET
			survey_label = excluded.survey_label,
			canonical_label = excluded.canonical_label,
			updated_at = excluded.updated_at`)

	_, err := s.db.ExecContext(ctx, query,
		normalize.Text(m.SurveyLabel), m.SurveyLabel, m.CanonicalLabel, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entity type mapping %q: %w", m.SurveyLabel, err)
	}
	return nil
}

func (s *SQLStore) Groups(ctx context.Context, year int) (GroupDefinition, error) {
	var row struct {
		Year      int       `db:"year"`
		JSON      string    `db:"groups_json"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	query := s.db.Rebind(`SELECT year, groups_json, updated_at FROM column_groups WHERE year = ?`)
	if err := s.db.GetContext(ctx, &row, query, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GroupDefinition{}, fmt.Errorf("groups for %d: %w", year, ErrNotFound)
		}
		return GroupDefinition{}, fmt.Errorf("failed to load groups for %d: %w", year, err)
	}

	def := GroupDefinition{Year: row.Year, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal([]byte(row.JSON), &def.Groups); err != nil {
		return GroupDefinition{}, fmt.Errorf("failed to decode groups for %d: %w", year, err)
	}
	return def, nil
}

func (s *SQLStore) UpsertGroups(ctx context.Context, def GroupDefinition) error {
	if err := survey.ValidateGroups(def.Groups, 0); err != nil {
		return err
	}
	if def.UpdatedAt.IsZero() {
		def.UpdatedAt = s.now()
	}
	data, err := json.Marshal(def.Groups)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO column_groups (year, groups_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (year) DO UPDATE SET
			groups_json = excluded.groups_json,
			updated_at = excluded.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, def.Year, string(data), def.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save groups for %d: %w", def.Year, err)
	}
	return nil
}
