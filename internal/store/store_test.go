package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/fefal-etl/internal/survey"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewSQLStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()), "migrate is idempotent")
	return s
}

func stores(t *testing.T) map[string]MappingStore {
	return map[string]MappingStore{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestColumnRenamesLastWriteWins(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.UpsertColumnRename(ctx, ColumnRename{OriginalName: "Nome do Município", CanonicalName: "entidade", Critical: false}))
			require.NoError(t, s.UpsertColumnRename(ctx, ColumnRename{OriginalName: "nome do municipio", CanonicalName: "nome_entidade", Critical: true}))
			require.NoError(t, s.UpsertColumnRename(ctx, ColumnRename{OriginalName: "E-mail", CanonicalName: "email"}))

			renames, err := s.ColumnRenames(ctx)
			require.NoError(t, err)
			require.Len(t, renames, 2)
			assert.Equal(t, "email", renames[0].CanonicalName)
			assert.Equal(t, "nome_entidade", renames[1].CanonicalName)
			assert.True(t, renames[1].Critical)
			assert.False(t, renames[1].UpdatedAt.IsZero())

			m := RenameMap(renames)
			assert.Equal(t, "nome_entidade", m["nome do municipio"])

			var cfgErr *survey.ConfigurationError
			assert.True(t, errors.As(s.UpsertColumnRename(ctx, ColumnRename{OriginalName: " "}), &cfgErr))
		})
	}
}

func TestRenameMapNewestWins(t *testing.T) {
	older := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	m := RenameMap([]ColumnRename{
		{OriginalName: "Nome do Município", CanonicalName: "nome_entidade", UpdatedAt: newer},
		{OriginalName: "nome do municipio", CanonicalName: "entidade", UpdatedAt: older},
		{OriginalName: "E-mail", CanonicalName: "email", UpdatedAt: older},
	})
	assert.Equal(t, map[string]string{"nome do municipio": "nome_entidade", "e-mail": "email"}, m)
}

func TestEntityTypeMappings(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, s.UpsertEntityTypeMapping(ctx, EntityTypeMapping{SurveyLabel: "Câmara", CanonicalLabel: "Municípios", UpdatedAt: at}))
			require.NoError(t, s.UpsertEntityTypeMapping(ctx, EntityTypeMapping{SurveyLabel: "Junta", CanonicalLabel: "Freguesias", UpdatedAt: at}))

			mappings, err := s.EntityTypeMappings(ctx)
			require.NoError(t, err)
			require.Len(t, mappings, 2)
			assert.True(t, at.Equal(mappings[0].UpdatedAt))

			m := TypeMap(mappings)
			assert.Equal(t, "Municípios", m["camara"])
			assert.Equal(t, "Freguesias", m["junta"])

			assert.Error(t, s.UpsertEntityTypeMapping(ctx, EntityTypeMapping{SurveyLabel: "x"}))
		})
	}
}

func TestGroups(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Groups(ctx, 2024)
			assert.True(t, errors.Is(err, ErrNotFound))

			groups := []survey.ColumnGroup{{Name: "identificacao", Start: 1, End: 10}, {Name: "formacoes", Start: 11, End: 20}}
			require.NoError(t, s.UpsertGroups(ctx, GroupDefinition{Year: 2024, Groups: groups}))
			require.NoError(t, s.UpsertGroups(ctx, GroupDefinition{Year: 2024, Groups: groups[:1]}))

			def, err := s.Groups(ctx, 2024)
			require.NoError(t, err)
			assert.Equal(t, 2024, def.Year)
			assert.Equal(t, groups[:1], def.Groups)

			bad := []survey.ColumnGroup{{Name: "a", Start: 5, End: 2}}
			var cfgErr *survey.ConfigurationError
			assert.True(t, errors.As(s.UpsertGroups(ctx, GroupDefinition{Year: 2025, Groups: bad}), &cfgErr))
		})
	}
}
