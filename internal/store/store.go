// Package store persists the mappings learned while reviewing surveys:
// column renames, entity-type mappings and per-year column groups.
// Writes are upserts and the last write wins per key.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

// ErrNotFound is returned when a year has no group definition
var ErrNotFound = errors.New("not found")

// ColumnRename maps a survey header to a canonical column
type ColumnRename struct {
	OriginalName  string    `db:"original_name" json:"original_name"`
	CanonicalName string    `db:"canonical_name" json:"canonical_name"`
	Critical      bool      `db:"critical" json:"critical"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// EntityTypeMapping maps a survey entity-type label to the registry label
type EntityTypeMapping struct {
	SurveyLabel    string    `db:"survey_label" json:"survey_label"`
	CanonicalLabel string    `db:"canonical_label" json:"canonical_label"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// GroupDefinition is the column group layout of one survey year
type GroupDefinition struct {
	Year      int                  `json:"year"`
	Groups    []survey.ColumnGroup `json:"groups"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// MappingStore is the read-write mapping store
type MappingStore interface {
	ColumnRenames(ctx context.Context) ([]ColumnRename, error)
	UpsertColumnRename(ctx context.Context, r ColumnRename) error
	EntityTypeMappings(ctx context.Context) ([]EntityTypeMapping, error)
	UpsertEntityTypeMapping(ctx context.Context, m EntityTypeMapping) error
	Groups(ctx context.Context, year int) (GroupDefinition, error)
	UpsertGroups(ctx context.Context, def GroupDefinition) error
}

// RenameMap indexes renames by normalized original header. The most
// recently updated rename wins a shared header.
func RenameMap(renames []ColumnRename) map[string]string {
	ordered := append([]ColumnRename(nil), renames...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].UpdatedAt.Before(ordered[j].UpdatedAt)
	})
	m := make(map[string]string, len(ordered))
	for _, r := range ordered {
		m[normalize.Text(r.OriginalName)] = r.CanonicalName
	}
	return m
}

// TypeMap indexes entity-type mappings by normalized survey label
func TypeMap(mappings []EntityTypeMapping) map[string]string {
	m := make(map[string]string, len(mappings))
	for _, tm := range mappings {
		m[normalize.Text(tm.SurveyLabel)] = tm.CanonicalLabel
	}
	return m
}

func validateRename(r ColumnRename) error {
	if normalize.Text(r.OriginalName) == "" || normalize.Text(r.CanonicalName) == "" {
		return &survey.ConfigurationError{Field: "column_rename", Reason: "original and canonical names are required"}
	}
	return nil
}

func validateTypeMapping(m EntityTypeMapping) error {
	if normalize.Text(m.SurveyLabel) == "" || normalize.Text(m.CanonicalLabel) == "" {
		return &survey.ConfigurationError{Field: "entity_type_mapping", Reason: "survey and canonical labels are required"}
	}
	return nil
}

// MemoryStore is an in-process MappingStore
type MemoryStore struct {
	mu      sync.Mutex
	renames map[string]ColumnRename
	types   map[string]EntityTypeMapping
	groups  map[int]GroupDefinition
	now     func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		renames: make(map[string]ColumnRename),
		types:   make(map[string]EntityTypeMapping),
		groups:  make(map[int]GroupDefinition),
		now:     time.Now,
	}
}

func (s *MemoryStore) ColumnRenames(ctx context.Context) ([]ColumnRename, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ColumnRename, 0, len(s.renames))
	for _, r := range s.renames {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return normalize.Text(out[i].OriginalName) < normalize.Text(out[j].OriginalName)
	})
	return out, nil
}

func (s *MemoryStore) UpsertColumnRename(ctx context.Context, r ColumnRename) error {
	if err := validateRename(r); err != nil {
		return err
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renames[normalize.Text(r.OriginalName)] = r
	return nil
}

func (s *MemoryStore) EntityTypeMappings(ctx context.Context) ([]EntityTypeMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntityTypeMapping, 0, len(s.types))
	for _, m := range s.types {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return normalize.Text(out[i].SurveyLabel) < normalize.Text(out[j].SurveyLabel)
	})
	return out, nil
}

func (s *MemoryStore) UpsertEntityTypeMapping(ctx context.Context, m EntityTypeMapping) error {
	if err := validateTypeMapping(m); err != nil {
		return err
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[normalize.Text(m.SurveyLabel)] = m
	return nil
}

func (s *MemoryStore) Groups(ctx context.Context, year int) (GroupDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.groups[year]
	if !ok {
		return GroupDefinition{}, ErrNotFound
	}
	def.Groups = append([]survey.ColumnGroup(nil), def.Groups...)
	return def, nil
}

func (s *MemoryStore) UpsertGroups(ctx context.Context, def GroupDefinition) error {
	if err := survey.ValidateGroups(def.Groups, 0); err != nil {
		return err
	}
	if def.UpdatedAt.IsZero() {
		def.UpdatedAt = s.now()
	}
	def.Groups = append([]survey.ColumnGroup(nil), def.Groups...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[def.Year] = def
	return nil
}
