package columns

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fefal-etl/internal/survey"
)

func testSchema() Schema {
	return Schema{Columns: []ColumnSpec{
		{
			Name:     "nome_entidade",
			Aliases:  []string{"Nome do Município", "Entidade"},
			Critical: true,
			Implies:  &Implied{Column: "tipo_entidade", Value: "Municípios"},
		},
		{Name: "tipo_entidade", Default: "Municípios"},
		{Name: "percentagem_preenchido", Aliases: []string{"% preenchido"}},
		{Name: "email", Aliases: []string{"Endereço de email"}, Default: ""},
	}}
}

func TestResolveExact(t *testing.T) {
	headers := []string{"Nome_Entidade", "Tipo_Entidade", "Percentagem_Preenchido", "Email"}

	res, err := Resolve(headers, testSchema(), nil)
	require.NoError(t, err)

	assert.Empty(t, res.MissingCritical)
	assert.Empty(t, res.MissingOptional)
	assert.Empty(t, res.Synthesized)
	assert.Equal(t, "nome_entidade", res.Mapping["Nome_Entidade"])
	assert.Equal(t, []string{"nome_entidade", "tipo_entidade", "percentagem_preenchido", "email"}, res.Order)
	for _, m := range res.Matches {
		assert.Equal(t, MethodExact, m.Method, m.Canonical)
	}
}

func TestResolveAliasImpliesCategory(t *testing.T) {
	headers := []string{"Nome do Municipio", "% Preenchido", "Endereço de email"}

	res, err := Resolve(headers, testSchema(), nil)
	require.NoError(t, err)

	assert.Equal(t, "nome_entidade", res.Mapping["Nome do Municipio"])
	assert.Equal(t, "percentagem_preenchido", res.Mapping["% Preenchido"])
	require.Len(t, res.Synthesized, 1)
	assert.Equal(t, SynthesizedColumn{Column: "tipo_entidade", Value: "Municípios"}, res.Synthesized[0])
	assert.Empty(t, res.MissingOptional, "implied column is not reported as missing")
	assert.NotEmpty(t, res.Warnings)
}

func TestResolveImpliedSkippedWhenPresent(t *testing.T) {
	headers := []string{"Nome do Municipio", "Tipo_Entidade"}

	res, err := Resolve(headers, testSchema(), nil)
	require.NoError(t, err)

	for _, s := range res.Synthesized {
		assert.NotEqual(t, "tipo_entidade", s.Column)
	}
}

func TestResolveLearned(t *testing.T) {
	headers := []string{"Designação da autarquia", "Observações"}
	learned := map[string]string{
		"designacao da autarquia": "nome_entidade",
		"Observações":             "observacoes",
	}

	res, err := Resolve(headers, testSchema(), learned)
	require.NoError(t, err)

	assert.Equal(t, "nome_entidade", res.Mapping["Designação da autarquia"])
	assert.Equal(t, "observacoes", res.Mapping["Observações"], "learned renames apply outside the schema")

	var method Method
	for _, m := range res.Matches {
		if m.Canonical == "nome_entidade" {
			method = m.Method
		}
	}
	assert.Equal(t, MethodLearned, method)
	assert.Contains(t, res.MissingOptional, "tipo_entidade")
}

func TestResolveMissingCritical(t *testing.T) {
	res, err := Resolve([]string{"Outra coisa qualquer"}, testSchema(), nil)
	require.Error(t, err)

	var colErr *ColumnResolutionError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, []string{"nome_entidade"}, colErr.Missing)
	assert.Equal(t, []string{"nome_entidade"}, res.MissingCritical)
	assert.Contains(t, err.Error(), "nome_entidade")
}

func TestResolveHeaderClaimedOnce(t *testing.T) {
	schema := Schema{Columns: []ColumnSpec{
		{Name: "entidade", Aliases: []string{"entidade"}},
		{Name: "nome", Aliases: []string{"entidade"}, Default: "x"},
	}}

	res, err := Resolve([]string{"Entidade"}, schema, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Entidade": "entidade"}, res.Mapping)
	assert.Equal(t, []string{"nome"}, res.MissingOptional)
}

func TestResolutionApply(t *testing.T) {
	tbl := survey.NewTable("identificacao", []string{"Nome do Municipio", "% Preenchido"})
	tbl.Rows = []survey.Row{
		{survey.Text("Sintra"), survey.Number(50)},
		{survey.Text("Porto"), survey.Number(70)},
	}

	res, err := Resolve(tbl.Columns, testSchema(), nil)
	require.NoError(t, err)
	res.Apply(tbl)

	assert.Equal(t, res.Order, tbl.Columns)
	assert.Equal(t, "Municípios", tbl.Value(1, "tipo_entidade").AsText())
	assert.True(t, tbl.Value(0, "email").IsEmpty())
}

func TestApplyLearned(t *testing.T) {
	tbl := survey.NewTable("formacoes", []string{"N.º formandos Excel", "Outra"})
	applied := ApplyLearned(tbl, map[string]string{"n.º formandos excel": "excel"})

	assert.Equal(t, map[string]string{"N.º formandos Excel": "excel"}, applied)
	assert.Equal(t, []string{"excel", "Outra"}, tbl.Columns)
}

func TestLearnedCollisionsAreDeterministic(t *testing.T) {
	learned := map[string]string{
		"Designação da Autarquia": "nome_entidade",
		"designacao da autarquia": "observacoes",
		"DESIGNACAO DA AUTARQUIA": "email",
	}

	for i := 0; i < 20; i++ {
		res, err := Resolve([]string{"Nome do Município", "Designação da autarquia"}, testSchema(), learned)
		require.NoError(t, err)
		assert.Equal(t, "email", res.Mapping["Designação da autarquia"])

		tbl := survey.NewTable("inquerito", []string{"Designação da autarquia"})
		applied := ApplyLearned(tbl, learned)
		assert.Equal(t, map[string]string{"Designação da autarquia": "email"}, applied)
	}
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, testSchema().Validate())

	bad := []Schema{
		{},
		{Columns: []ColumnSpec{{Name: " "}}},
		{Columns: []ColumnSpec{{Name: "a"}, {Name: "A"}}},
		{Columns: []ColumnSpec{{Name: "a", Threshold: 120}}},
		{Columns: []ColumnSpec{{Name: "a", Implies: &Implied{}}}},
	}
	for _, s := range bad {
		var cfgErr *survey.ConfigurationError
		assert.True(t, errors.As(s.Validate(), &cfgErr))
	}
}

func TestCleanHeader(t *testing.T) {
	assert.Equal(t, "Nome da Entidade", CleanHeader("  Nome  da\tEntidade "))
}
