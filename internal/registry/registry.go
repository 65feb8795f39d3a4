// Package registry resolves normalized entity names to stable registry ids
package registry

import (
	"context"
	"sort"

	"github.com/fefal-etl/internal/logging"
	"github.com/fefal-etl/internal/normalize"
)

// Entity is one row of the canonical registry
type Entity struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Type string `db:"type" json:"type"`
}

// Source lists the registry entities
type Source interface {
	Entities(ctx context.Context) ([]Entity, error)
}

// StaticSource serves a fixed registry snapshot
type StaticSource []Entity

// Entities returns the snapshot
func (s StaticSource) Entities(ctx context.Context) ([]Entity, error) {
	return append([]Entity(nil), s...), nil
}

// Types lists the distinct types of the snapshot in order
func (s StaticSource) Types(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var types []string
	for _, e := range s {
		if e.Type != "" && !seen[e.Type] {
			seen[e.Type] = true
			types = append(types, e.Type)
		}
	}
	sort.Strings(types)
	return types, nil
}

// Key joins an already normalized name and type
func Key(nameNorm, typeNorm string) string {
	return nameNorm + "||" + typeNorm
}

// Collision records a registry entry whose key was already taken
type Collision struct {
	Key       string `json:"key"`
	KeptID    int64  `json:"kept_id"`
	DroppedID int64  `json:"dropped_id"`
}

// Index maps normalized name+type keys to registry ids
type Index struct {
	ids        map[string]int64
	collisions []Collision
}

// NewIndex normalizes every entity the same way survey rows are normalized:
// abbreviation-expanded, prefix-stripped name and normalized type. On a key
// collision the first entity wins.
func NewIndex(entities []Entity, prefixes *normalize.Prefixes, abbrev *normalize.AbbrevRules) *Index {
	ix := &Index{ids: make(map[string]int64, len(entities))}
	for _, e := range entities {
		k := Key(prefixes.Strip(abbrev.Expand(e.Name)), normalize.Text(e.Type))
		if kept, ok := ix.ids[k]; ok {
			if kept != e.ID {
				ix.collisions = append(ix.collisions, Collision{Key: k, KeptID: kept, DroppedID: e.ID})
				logging.Default().Warn().
					Str("key", k).
					Int64("kept_id", kept).
					Int64("dropped_id", e.ID).
					Msg("registry key collision")
			}
			continue
		}
		ix.ids[k] = e.ID
	}
	return ix
}

// Match looks up an exact key
func (ix *Index) Match(nameNorm, typeNorm string) (int64, bool) {
	id, ok := ix.ids[Key(nameNorm, typeNorm)]
	return id, ok
}

// Len returns the number of distinct keys
func (ix *Index) Len() int { return len(ix.ids) }

// Collisions returns the entities dropped because their key was taken
func (ix *Index) Collisions() []Collision {
	return append([]Collision(nil), ix.collisions...)
}
