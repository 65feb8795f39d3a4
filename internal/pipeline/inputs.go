package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fefal-etl/internal/config"
	"github.com/fefal-etl/internal/registry"
	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/survey"
	"github.com/fefal-etl/internal/validation"
)

// Inputs are the external snapshots a run reads. They are fetched once,
// before any processing.
type Inputs struct {
	Registry    []registry.Entity
	Renames     []store.ColumnRename
	EntityTypes []store.EntityTypeMapping
	Groups      []survey.ColumnGroup
	Concelhos   *validation.ReferenceList
	Freguesias  *validation.ReferenceList
}

// Loader fetches Inputs from the registry, the mapping store and the
// reference list files
type Loader struct {
	Config   *config.Config
	Registry registry.Source
	Store    store.MappingStore
}

// Load fetches every input in parallel; the first failure cancels the rest
// and is returned
func (l *Loader) Load(ctx context.Context) (*Inputs, error) {
	in := &Inputs{}
	g, ctx := errgroup.WithContext(ctx)

	if l.Registry != nil {
		g.Go(func() error {
			entities, err := l.Registry.Entities(ctx)
			if err != nil {
				return fmt.Errorf("failed to load registry: %w", err)
			}
			in.Registry = entities
			return nil
		})
	}

	if l.Store != nil {
		g.Go(func() error {
			renames, err := l.Store.ColumnRenames(ctx)
			if err != nil {
				return fmt.Errorf("failed to load column renames: %w", err)
			}
			in.Renames = renames
			return nil
		})
		g.Go(func() error {
			types, err := l.Store.EntityTypeMappings(ctx)
			if err != nil {
				return fmt.Errorf("failed to load entity type mappings: %w", err)
			}
			in.EntityTypes = types
			return nil
		})
	}

	g.Go(func() error {
		groups, err := l.groups(ctx)
		if err != nil {
			return err
		}
		in.Groups = groups
		return nil
	})

	refs := l.Config.References
	if refs.Concelhos != "" {
		g.Go(func() error {
			list, err := validation.LoadReferenceList("concelhos", refs.Concelhos)
			in.Concelhos = list
			return err
		})
	}
	if refs.Freguesias != "" {
		g.Go(func() error {
			list, err := validation.LoadReferenceList("freguesias", refs.Freguesias)
			in.Freguesias = list
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// groups prefers the stored definition for the year over the config file
func (l *Loader) groups(ctx context.Context) ([]survey.ColumnGroup, error) {
	if l.Store != nil && l.Config.Year > 0 {
		def, err := l.Store.Groups(ctx, l.Config.Year)
		switch {
		case err == nil:
			return def.Groups, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to load column groups for %d: %w", l.Config.Year, err)
		}
	}
	if len(l.Config.Groups) == 0 {
		return nil, &survey.ConfigurationError{Field: "groups", Reason: fmt.Sprintf("no column groups for year %d", l.Config.Year)}
	}
	return l.Config.Groups, nil
}
