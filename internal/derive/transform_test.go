package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

func TestTransforms(t *testing.T) {
	interests := survey.NewTable(survey.GroupInterests, []string{"excel", "comentario adicional"})
	interests.Rows = []survey.Row{
		{survey.Text("Sim"), survey.Text("Sim, muito")},
		{survey.Text("NÃO"), survey.Text("nao")},
		{survey.Text("talvez"), survey.Empty()},
	}
	teaching := survey.NewTable(survey.GroupTeaching, []string{"presencial"})
	teaching.Rows = []survey.Row{{survey.Text("2")}, {survey.Number(1.5)}, {survey.Text("x")}}

	ds := &survey.Dataset{Groups: []*survey.Table{trainings(), interests, teaching}, Lines: []int{2, 3, 4}}
	for _, tr := range DefaultTransforms() {
		require.NoError(t, tr.Apply(ds))
	}

	tr := ds.Group(survey.GroupTrainings)
	assert.Equal(t, []string{"excel", "word"}, tr.Columns)
	var got []string
	for r := range tr.Rows {
		for _, c := range tr.Rows[r] {
			got = append(got, c.AsText())
		}
	}
	assert.Equal(t, []string{"3", "2", "0", "4", "0", "0"}, got)

	assert.Equal(t, "1", interests.Value(0, "excel").AsText())
	assert.Equal(t, "0", interests.Value(1, "excel").AsText())
	assert.True(t, interests.Value(2, "excel").IsEmpty())
	assert.Equal(t, "Sim, muito", interests.Value(0, "comentario adicional").AsText(), "comment columns are untouched")

	assert.Equal(t, "2", teaching.Value(0, "presencial").AsText())
	assert.True(t, teaching.Value(1, "presencial").IsEmpty())
	assert.True(t, teaching.Value(2, "presencial").IsEmpty())
}

func TestTransformBadConfig(t *testing.T) {
	ds := &survey.Dataset{Groups: []*survey.Table{trainings()}, Lines: []int{2, 3, 4}}

	assert.Error(t, Transform{Group: survey.GroupTrainings, Kind: "upper"}.Apply(ds))
	assert.Error(t, Transform{Group: survey.GroupTrainings, Kind: TransformCount, HeaderPrefixes: []string{"("}}.Apply(ds))
	assert.NoError(t, Transform{Group: "missing", Kind: "upper"}.Apply(ds))
}

func TestPruneEmpty(t *testing.T) {
	tbl := survey.NewTable("interesses", []string{"a", "b", "c"})
	tbl.Rows = []survey.Row{
		{survey.Text("sim"), survey.Empty(), survey.Text("nd")},
		{survey.Empty(), survey.Text("n/a"), survey.Empty()},
	}

	dropped := PruneEmpty(tbl, normalize.NewSentinels(normalize.DefaultSentinels))
	assert.Equal(t, []string{"b", "c"}, dropped)
	assert.Equal(t, []string{"a"}, tbl.Columns)

	assert.Nil(t, PruneEmpty(survey.NewTable("x", []string{"a"}), nil))
}
