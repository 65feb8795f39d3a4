package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fefal-etl/internal/columns"
	"github.com/fefal-etl/internal/config"
	"github.com/fefal-etl/internal/registry"
	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/survey"
	"github.com/fefal-etl/internal/validation"
)

var testGroups = []survey.ColumnGroup{
	{Name: survey.GroupIdentification, Start: 1, End: 6},
	{Name: survey.GroupTrainings, Start: 7, End: 8},
	{Name: survey.GroupInterests, Start: 9, End: 10},
}

func txt(s string) survey.Cell { return survey.Text(s) }

func testSheet() *survey.Table {
	t := survey.NewTable("inquerito.xlsx", []string{
		"Nome da Entidade", "tipo_entidade", "data_inicio", "data_fim", "data_submissao", "percentagem_preenchido",
		"Nº de formandos em Excel", "Nº de formandos em Word",
		"Interesse em IA", "Comentário",
	})
	row := func(name, typ, start, end, sub string, pct survey.Cell, f1, f2 survey.Cell, interest, comment string) survey.Row {
		return survey.Row{txt(name), txt(typ), txt(start), txt(end), txt(sub), pct, f1, f2, txt(interest), txt(comment)}
	}
	t.Rows = []survey.Row{
		// line 2: canonical Sintra
		row("Município de Sintra", "Municípios", "2024-03-01 10:00:00", "2024-03-01 10:10:00", "2024-03-01 10:10:00", survey.Number(50), survey.Number(3), survey.Number(2), "sim", "ok"),
		// line 3: same entity with more gaps
		row("Sintra", "Municípios", "2024-03-01 10:00:00", "2024-03-01 10:20:00", "", survey.Number(100), survey.Number(1), txt("nd"), "nao", ""),
		// line 4, 5: null entity
		row("", "Municípios", "", "", "", survey.Empty(), survey.Empty(), survey.Empty(), "", ""),
		row("nd", "Municípios", "", "", "", survey.Empty(), survey.Empty(), survey.Empty(), "", ""),
		// line 6, 7: invalid entity
		row("Xyzw", "Municípios", "", "", "", survey.Empty(), survey.Empty(), survey.Empty(), "", ""),
		row("Entidade Qualquer Lda", "Empresa", "", "", "", survey.Empty(), survey.Empty(), survey.Empty(), "", ""),
		// line 8: parish
		row("Junta de Freguesia de Arroios", "Freguesias", "2024-03-02 09:00:00", "2024-03-02 09:30:00", "", survey.Number(80), survey.Number(4), survey.Number(0), "sim", ""),
		// line 9: valid but not in the registry
		row("Município da Amadora", "Municípios", "", "", "", survey.Empty(), survey.Empty(), survey.Empty(), "", ""),
	}
	return t
}

func testInputs() *Inputs {
	return &Inputs{
		Registry: []registry.Entity{
			{ID: 1, Name: "Município de Sintra", Type: "Municípios"},
			{ID: 2, Name: "Município de Oeiras", Type: "Municípios"},
			{ID: 3, Name: "Freguesia de Arroios", Type: "Freguesias"},
		},
		Groups:     testGroups,
		Concelhos:  validation.NewReferenceList("concelhos", []string{"Sintra", "Oeiras", "Lisboa"}),
		Freguesias: validation.NewReferenceList("freguesias", []string{"Arroios"}),
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Year = 2024
	return cfg
}

func runTest(t *testing.T) *Result {
	t.Helper()
	p, err := New(testConfig())
	require.NoError(t, err)
	res, err := p.Run(testSheet(), testInputs())
	require.NoError(t, err)
	return res
}

func TestRunPartitions(t *testing.T) {
	res := runTest(t)
	parts := res.Partitions

	var final, dups, unmatched []int
	for _, e := range parts.Final {
		final = append(final, e.Line)
	}
	for _, e := range parts.Duplicates {
		dups = append(dups, e.Line)
	}
	for _, e := range parts.Unmatched {
		unmatched = append(unmatched, e.Line)
	}
	assert.Equal(t, []int{2, 8}, final)
	assert.Equal(t, []int{3}, dups)
	assert.Equal(t, []int{9}, unmatched)

	require.Len(t, res.Removed, 4)
	reasons := map[int]survey.Reason{}
	for _, rm := range res.Removed {
		reasons[rm.Line] = rm.Reason
	}
	assert.Equal(t, map[int]survey.Reason{
		4: survey.ReasonNullEntity,
		5: survey.ReasonNullEntity,
		6: survey.ReasonInvalidEntity,
		7: survey.ReasonInvalidEntity,
	}, reasons)

	assert.Equal(t, []string{"Xyzw", "Entidade Qualquer Lda"}, res.Invalid.Values())

	assert.Equal(t, int64(1), *parts.Final[0].RegistryID)
	assert.Equal(t, int64(3), *parts.Final[1].RegistryID)
	assert.Equal(t, "sintra", parts.Final[0].Record.Name)
	assert.Equal(t, "arroios", parts.Final[1].Record.NameNorm)
	assert.Equal(t, "municipio da amadora", parts.Unmatched[0].Record.Name)
	assert.Equal(t, survey.ReasonUnmatched, parts.Unmatched[0].Reason)
	assert.Equal(t, survey.ReasonDuplicate, parts.Duplicates[0].Reason)
}

func TestRunTotality(t *testing.T) {
	res := runTest(t)
	assert.Equal(t, res.InputRows-len(res.Removed), res.Partitions.Total())

	s := res.Summary()
	assert.Equal(t, 8, s.InputRows)
	assert.Equal(t, 2, s.Final)
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, 1, s.Unmatched)
	assert.Equal(t, map[string]int{"null-entity": 2, "invalid-entity": 2}, s.Removed)

	out, err := s.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "final: 2")
}

func TestRunColumns(t *testing.T) {
	res := runTest(t)
	cols := res.Partitions.Columns

	assert.Equal(t, "id_entidade", cols[0])
	for _, c := range []string{"nome_entidade", "tipo_entidade", "tempo_realizacao", "foi_submetido", "ano", "existe_responsavel", "nome_responsavel", "excel", "word", "n_total_formandos", "interesse em ia", "comentario"} {
		assert.Contains(t, cols, c)
	}
	for _, c := range []string{"data_inicio", "data_fim"} {
		assert.NotContains(t, cols, c)
	}

	combined := res.Combined()
	assert.Equal(t, "600", combined.Value(0, "tempo_realizacao").AsText())
	assert.Equal(t, "50", combined.Value(0, "percentagem_preenchido").AsText())
	assert.Equal(t, "80", combined.Value(1, "percentagem_preenchido").AsText())
	assert.Equal(t, "5", combined.Value(0, "n_total_formandos").AsText())
	assert.Equal(t, "1", combined.Value(0, "interesse em ia").AsText())
	assert.Equal(t, "ok", combined.Value(0, "comentario").AsText())
	assert.Equal(t, "2024", combined.Value(0, "ano").AsText())
	assert.Equal(t, "sim", combined.Value(0, "foi_submetido").AsText())
	assert.Equal(t, "nao", combined.Value(1, "foi_submetido").AsText())
	assert.Equal(t, "2024-03-02 09:30:00", combined.Value(1, "data_submissao").AsText(), "submission date falls back to the end date")

	groups := res.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, survey.GroupIdentification, groups[0].Name)
	assert.Equal(t, 2, groups[1].Len())
	assert.Equal(t, "5", groups[1].Value(0, "n_total_formandos").AsText())
}

func TestRunIsIdempotent(t *testing.T) {
	sheet := testSheet()
	p, err := New(testConfig())
	require.NoError(t, err)

	first, err := p.Run(sheet, testInputs())
	require.NoError(t, err)
	second, err := p.Run(sheet, testInputs())
	require.NoError(t, err)

	assert.Equal(t, first.Partitions, second.Partitions)
	assert.Equal(t, first.Removed, second.Removed)
	assert.Equal(t, testSheet(), sheet, "input sheet is not modified")
}

func TestRunAbortsOnMissingCriticalColumn(t *testing.T) {
	sheet := testSheet()
	sheet.Columns[0] = "foo"

	p, err := New(testConfig())
	require.NoError(t, err)
	res, err := p.Run(sheet, testInputs())
	assert.Nil(t, res)

	var colErr *columns.ColumnResolutionError
	require.True(t, errors.As(err, &colErr), "got %v", err)
	assert.Equal(t, []string{"nome_entidade"}, colErr.Missing)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageResolveColumns, stageErr.Stage)
}

func TestRunAbortsOnBadGroups(t *testing.T) {
	tests := []struct {
		name   string
		groups []survey.ColumnGroup
	}{
		{"none", nil},
		{"out of range", []survey.ColumnGroup{{Name: survey.GroupIdentification, Start: 1, End: 40}}},
		{"no identification", []survey.ColumnGroup{{Name: survey.GroupTrainings, Start: 7, End: 8}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInputs()
			in.Groups = tt.groups
			p, err := New(testConfig())
			require.NoError(t, err)

			_, err = p.Run(testSheet(), in)
			var cfgErr *survey.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestRunAppliesStoredMappings(t *testing.T) {
	sheet := testSheet()
	sheet.Columns[0] = "Entidade respondente"
	sheet.Rows[0][1] = txt("Municipio")

	in := testInputs()
	in.Renames = []store.ColumnRename{{OriginalName: "Entidade respondente", CanonicalName: "nome_entidade", Critical: true}}
	in.EntityTypes = []store.EntityTypeMapping{{SurveyLabel: "municipio", CanonicalLabel: "Municípios"}}

	p, err := New(testConfig())
	require.NoError(t, err)
	res, err := p.Run(sheet, in)
	require.NoError(t, err)

	assert.Contains(t, res.Resolution.Matches, columns.Match{Canonical: "nome_entidade", Header: "entidade respondente", Method: columns.MethodLearned, Score: 100})
	require.NotEmpty(t, res.Partitions.Final)
	assert.Equal(t, "municipios", res.Partitions.Final[0].Record.Type)
}

func TestRunMatchesAbbreviatedRegistryNames(t *testing.T) {
	sheet := testSheet()
	sheet.Rows = sheet.Rows[:1]
	sheet.Rows = append(sheet.Rows, survey.Row{
		txt("Freguesia de Sta. Maria Maior"), txt("Freguesias"), txt("2024-03-02 09:00:00"), txt("2024-03-02 09:30:00"), txt(""),
		survey.Number(80), survey.Number(2), survey.Number(1), txt("sim"), txt(""),
	})

	in := testInputs()
	in.Registry = append(in.Registry, registry.Entity{ID: 4, Name: "Freguesia de Sta. Maria Maior", Type: "Freguesias"})
	in.Freguesias = validation.NewReferenceList("freguesias", []string{"Arroios", "Santa Maria Maior"})

	p, err := New(testConfig())
	require.NoError(t, err)
	res, err := p.Run(sheet, in)
	require.NoError(t, err)

	require.Len(t, res.Partitions.Final, 2)
	assert.Empty(t, res.Partitions.Unmatched)
	last := res.Partitions.Final[1]
	assert.Equal(t, "santa maria maior", last.Record.NameNorm)
	require.NotNil(t, last.RegistryID)
	assert.Equal(t, int64(4), *last.RegistryID)
}

func TestOverrideKeepsTotals(t *testing.T) {
	res := runTest(t)
	before := res.Partitions.Total()

	require.NoError(t, res.Partitions.Override(1, 3))
	assert.Equal(t, before, res.Partitions.Total())

	canonical, ok := res.Partitions.Canonical(1)
	require.True(t, ok)
	assert.Equal(t, 3, canonical.Line)
	assert.Equal(t, 2, res.Partitions.Duplicates[0].Line)
}

func TestWorkbook(t *testing.T) {
	res := runTest(t)
	wb := res.Workbook()

	var names []string
	for _, tbl := range wb {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{
		survey.GroupIdentification, survey.GroupTrainings, survey.GroupInterests,
		SheetAllData, SheetDuplicates, SheetUnmatched, SheetRemoved,
	}, names)

	dups := wb[4]
	assert.Equal(t, ReasonColumn, dups.Columns[0])
	assert.Equal(t, "DUPLICADO", dups.Value(0, ReasonColumn).AsText())
	assert.Equal(t, len(res.Partitions.Columns)+1, len(dups.Columns))

	removed := wb[6]
	assert.Equal(t, 4, removed.Len())
	assert.Equal(t, "VALOR DE ENTIDADE NULO", removed.Value(0, ReasonColumn).AsText())
	assert.Equal(t, "ENTIDADE INVALIDA", removed.Value(2, ReasonColumn).AsText())
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	concelhos := filepath.Join(dir, "concelhos.txt")
	require.NoError(t, os.WriteFile(concelhos, []byte("Sintra\nOeiras\n"), 0o644))

	cfg := testConfig()
	cfg.References.Concelhos = concelhos
	cfg.Groups = testGroups

	ms := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, ms.UpsertColumnRename(ctx, store.ColumnRename{OriginalName: "Entidade", CanonicalName: "nome_entidade"}))

	loader := &Loader{Config: cfg, Registry: registry.StaticSource(testInputs().Registry), Store: ms}

	t.Run("config groups", func(t *testing.T) {
		in, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, in.Registry, 3)
		assert.Len(t, in.Renames, 1)
		assert.Equal(t, testGroups, in.Groups)
		assert.Equal(t, 2, in.Concelhos.Len())
		assert.Nil(t, in.Freguesias)
	})

	t.Run("stored groups win", func(t *testing.T) {
		stored := []survey.ColumnGroup{{Name: survey.GroupIdentification, Start: 1, End: 10}}
		require.NoError(t, ms.UpsertGroups(ctx, store.GroupDefinition{Year: 2024, Groups: stored}))
		in, err := loader.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, stored, in.Groups)
	})

	t.Run("missing reference file", func(t *testing.T) {
		bad := *cfg
		bad.References.Freguesias = filepath.Join(dir, "missing.txt")
		_, err := (&Loader{Config: &bad}).Load(ctx)
		assert.Error(t, err)
	})

	t.Run("no groups anywhere", func(t *testing.T) {
		bare := testConfig()
		_, err := (&Loader{Config: bare}).Load(ctx)
		var cfgErr *survey.ConfigurationError
		assert.True(t, errors.As(err, &cfgErr))
	})
}
