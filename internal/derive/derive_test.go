package derive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

func testDeriver() *Deriver {
	return &Deriver{
		Sentinels: normalize.NewSentinels(normalize.DefaultSentinels),
		Layouts:   survey.DefaultTimeLayouts,
	}
}

func identification() *survey.Table {
	t := survey.NewTable(survey.GroupIdentification, []string{"nome_entidade", "data_inicio", "data_fim", "data_submissao"})
	t.Rows = []survey.Row{
		{survey.Text("Sintra"), survey.Text("2024-03-01 10:00:00"), survey.Text("2024-03-01 10:05:30"), survey.Text("2024-03-01 10:05:30")},
		{survey.Text("Porto"), survey.Text("2024-03-01 10:00:00"), survey.Text("2024-03-01 09:00:00"), survey.Text("nd")},
		{survey.Text("Lisboa"), survey.Empty(), survey.Text("2024-03-01 09:00:00"), survey.Empty()},
	}
	return t
}

func trainings() *survey.Table {
	t := survey.NewTable(survey.GroupTrainings, []string{"no de formandos em excel", "no de formandos em word"})
	t.Rows = []survey.Row{
		{survey.Number(3), survey.Number(2)},
		{survey.Number(2.5), survey.Text("4")},
		{survey.Empty(), survey.Text("nd")},
	}
	return t
}

func TestDefaultSpecs(t *testing.T) {
	ds := &survey.Dataset{Groups: []*survey.Table{identification(), trainings()}, Lines: []int{2, 3, 4}}

	skipped, err := testDeriver().Apply(ds, DefaultSpecs())
	require.NoError(t, err)
	assert.Empty(t, skipped)

	id := ds.Group(survey.GroupIdentification)
	assert.Equal(t, []string{"nome_entidade", "data_inicio", "data_fim", "tempo_realizacao", "data_submissao", "foi_submetido"}, id.Columns)
	assert.Equal(t, "330", id.Value(0, "tempo_realizacao").AsText())
	assert.True(t, id.Value(1, "tempo_realizacao").IsEmpty(), "negative durations are missing")
	assert.True(t, id.Value(2, "tempo_realizacao").IsEmpty())
	assert.Equal(t, "sim", id.Value(0, "foi_submetido").AsText())
	assert.Equal(t, "nao", id.Value(1, "foi_submetido").AsText())
	assert.Equal(t, "nao", id.Value(2, "foi_submetido").AsText())

	tr := ds.Group(survey.GroupTrainings)
	assert.Equal(t, "n_total_formandos", tr.Columns[len(tr.Columns)-1])
	assert.Equal(t, "5", tr.Value(0, "n_total_formandos").AsText())
	assert.Equal(t, "4", tr.Value(1, "n_total_formandos").AsText(), "fractional counts are left out of the sum")
	assert.Equal(t, "0", tr.Value(2, "n_total_formandos").AsText())
}

func TestExistingDurationKept(t *testing.T) {
	tbl := survey.NewTable(survey.GroupIdentification, []string{"nome_entidade", "tempo_realizacao"})
	tbl.Rows = []survey.Row{{survey.Text("Sintra"), survey.Number(120)}}
	ds := &survey.Dataset{Groups: []*survey.Table{tbl}, Lines: []int{2}}

	skipped, err := testDeriver().Apply(ds, DefaultSpecs()[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{"tempo_realizacao"}, skipped)
	assert.Equal(t, "120", tbl.Value(0, "tempo_realizacao").AsText())
}

func TestPlace(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{"after anchor", Spec{Name: "x", Anchor: "a", Offset: 1}, []string{"a", "x", "b", "c"}},
		{"before anchor", Spec{Name: "x", Anchor: "b", Offset: 0}, []string{"a", "x", "b", "c"}},
		{"after last", Spec{Name: "x", Anchor: AnchorLast, Offset: 1}, []string{"a", "b", "c", "x"}},
		{"missing anchor", Spec{Name: "x", Anchor: "zz", Offset: 1}, []string{"a", "b", "c", "x"}},
		{"clamped", Spec{Name: "x", Anchor: "a", Offset: -5}, []string{"x", "a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := survey.NewTable("g", []string{"a", "b", "c"})
			Place(tbl, tt.spec, nil)
			assert.Equal(t, tt.want, tbl.Columns)
		})
	}
}

func TestSpecValidate(t *testing.T) {
	for _, s := range DefaultSpecs() {
		assert.NoError(t, s.Validate(), s.Name)
	}

	bad := []Spec{
		{Group: "g", Kind: KindConstant},
		{Name: "x", Kind: KindConstant},
		{Name: "x", Group: "g", Kind: KindDuration, Sources: []string{"a"}},
		{Name: "x", Group: "g", Kind: KindSubmitted},
		{Name: "x", Group: "g", Kind: "median"},
	}
	for _, s := range bad {
		var cfgErr *survey.ConfigurationError
		assert.True(t, errors.As(s.Validate(), &cfgErr), "%+v", s)
	}
}

func TestConstant(t *testing.T) {
	ds := &survey.Dataset{Groups: []*survey.Table{identification()}, Lines: []int{2, 3, 4}}
	_, err := testDeriver().Apply(ds, []Spec{{Name: "ano", Group: survey.GroupIdentification, Kind: KindConstant, Value: "2024", Anchor: "nome_entidade", Offset: 1}})
	require.NoError(t, err)

	id := ds.Group(survey.GroupIdentification)
	assert.Equal(t, 1, id.Index("ano"))
	n, ok := id.Value(2, "ano").AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(2024), n)
}

func TestComputeKeepsExistingColumnWhenSourcesAreBlank(t *testing.T) {
	tbl := survey.NewTable(survey.GroupIdentification, []string{"data_inicio", "data_fim", "tempo_realizacao"})
	tbl.Rows = []survey.Row{
		{survey.Empty(), survey.Text("nd"), survey.Int(120)},
		{survey.Empty(), survey.Empty(), survey.Int(60)},
	}

	_, ok := testDeriver().Compute(tbl, DefaultSpecs()[0])
	assert.False(t, ok)

	tbl.Set(0, "data_inicio", survey.Text("2024-03-01 10:00:00"))
	values, ok := testDeriver().Compute(tbl, DefaultSpecs()[0])
	require.True(t, ok)
	assert.True(t, values[0].IsEmpty())
}
