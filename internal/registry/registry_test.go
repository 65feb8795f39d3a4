package registry

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/fefal-etl/internal/normalize"
)

func testPrefixes() *normalize.Prefixes {
	return normalize.MustCompilePrefixes(normalize.DefaultPrefixes)
}

func testAbbrev(t *testing.T) *normalize.AbbrevRules {
	t.Helper()
	ar, err := normalize.NewAbbrevRules(nil)
	require.NoError(t, err)
	return ar
}

func TestIndexMatch(t *testing.T) {
	ix := NewIndex([]Entity{
		{ID: 1, Name: "Município de Sintra", Type: "Municípios"},
		{ID: 2, Name: "Junta de Freguesia de Alvalade", Type: "Freguesias"},
		{ID: 3, Name: "Câmara Municipal de Sintra", Type: "Municípios"},
		{ID: 4, Name: "Sintra", Type: "Freguesias"},
		{ID: 5, Name: "Freguesia de Sta. Maria Maior", Type: "Freguesias"},
		{ID: 6, Name: "U.F. de Cascais e Estoril", Type: "Freguesias"},
	}, testPrefixes(), testAbbrev(t))

	tests := []struct {
		name   string
		typ    string
		wantID int64
		wantOK bool
	}{
		{"sintra", "municipios", 1, true},
		{"alvalade", "freguesias", 2, true},
		{"sintra", "freguesias", 4, true},
		{"santa maria maior", "freguesias", 5, true},
		{"cascais e estoril", "freguesias", 6, true},
		{"sta. maria maior", "freguesias", 0, false},
		{"Sintra", "municipios", 0, false},
		{"porto", "municipios", 0, false},
	}

	for _, tt := range tests {
		t.Run(Key(tt.name, tt.typ), func(t *testing.T) {
			id, ok := ix.Match(tt.name, tt.typ)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}

	assert.Equal(t, 5, ix.Len())
	require.Len(t, ix.Collisions(), 1)
	assert.Equal(t, Collision{Key: "sintra||municipios", KeptID: 1, DroppedID: 3}, ix.Collisions()[0])
}

func TestIndexDeterministic(t *testing.T) {
	entities := []Entity{{ID: 10, Name: "CM Porto", Type: "Municípios"}, {ID: 11, Name: "Porto", Type: "Municípios"}}
	for i := 0; i < 3; i++ {
		id, ok := NewIndex(entities, testPrefixes(), testAbbrev(t)).Match("porto", "municipios")
		require.True(t, ok)
		assert.Equal(t, int64(10), id)
	}
}

func TestSQLSource(t *testing.T) {
	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	db.MustExec(`CREATE TABLE entidades (id_entidades INTEGER PRIMARY KEY, ent_nome TEXT, ent_tipo TEXT)`)
	db.MustExec(`INSERT INTO entidades VALUES (1, 'Município de Lisboa', 'Municípios'), (2, 'Freguesia de Alvalade', 'Freguesias'), (3, 'Município do Porto', 'Municípios')`)

	src := NewSQLSource(db, "")
	entities, err := src.Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, Entity{ID: 2, Name: "Freguesia de Alvalade", Type: "Freguesias"}, entities[1])

	types, err := src.Types(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Freguesias", "Municípios"}, types)

	id, ok := NewIndex(entities, testPrefixes(), testAbbrev(t)).Match("porto", "municipios")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	_, err = NewSQLSource(db, "SELECT nope FROM missing").Entities(context.Background())
	assert.Error(t, err)
}

func TestStaticSourceTypes(t *testing.T) {
	src := StaticSource{
		{ID: 1, Name: "Lisboa", Type: "Municípios"},
		{ID: 2, Name: "Alvalade", Type: "Freguesias"},
		{ID: 3, Name: "Porto", Type: "Municípios"},
		{ID: 4, Name: "Sem tipo"},
	}
	types, err := src.Types(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Freguesias", "Municípios"}, types)
}
