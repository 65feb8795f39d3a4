package registry

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// DefaultQuery reads the registry of the SII database
const DefaultQuery = `SELECT id_entidades AS id, ent_nome AS name, ent_tipo AS type FROM entidades`

// SQLSource reads the registry with a configurable query that returns
// id, name and type columns
type SQLSource struct {
	db    *sqlx.DB
	query string
}

// NewSQLSource creates a registry source; an empty query uses DefaultQuery
func NewSQLSource(db *sqlx.DB, query string) *SQLSource {
	if query == "" {
		query = DefaultQuery
	}
	return &SQLSource{db: db, query: query}
}

// Entities runs the registry query
func (s *SQLSource) Entities(ctx context.Context) ([]Entity, error) {
	var entities []Entity
	if err := s.db.SelectContext(ctx, &entities, s.query); err != nil {
		return nil, fmt.Errorf("failed to query registry: %w", err)
	}
	return entities, nil
}

// Types lists the distinct entity types of the registry
func (s *SQLSource) Types(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT r.type FROM (` + s.query + `) r WHERE r.type IS NOT NULL ORDER BY r.type`
	var types []string
	if err := s.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("failed to query registry types: %w", err)
	}
	return types, nil
}
