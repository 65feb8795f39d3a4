package validation

import (
	"unicode/utf8"

	"github.com/fefal-etl/internal/debug"
	"github.com/fefal-etl/internal/fuzzy"
	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

// Step names the rule of the fallback chain that decided an outcome
type Step string

const (
	StepEmpty     Step = "empty"
	StepTooShort  Step = "too-short"
	StepConcelho  Step = "concelho"
	StepFreguesia Step = "freguesia"
	StepKeyword   Step = "keyword"
	StepTypeHint  Step = "type-hint"
	StepFallback  Step = "fallback"
)

// MinNameLength is the lowest accepted MinLength; names of four runes or
// fewer are never entities
const MinNameLength = 4

// Config holds the entity validation vocabularies and thresholds
type Config struct {
	// Threshold is the minimum partial-ratio score for a reference list hit
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	// MinLength rejects names whose normalized length is at most this value
	MinLength            int      `json:"min_length" yaml:"min_length" mapstructure:"min_length"`
	MunicipalityKeywords []string `json:"municipality_keywords" yaml:"municipality_keywords" mapstructure:"municipality_keywords"`
	ParishKeywords       []string `json:"parish_keywords" yaml:"parish_keywords" mapstructure:"parish_keywords"`
	ValidTypes           []string `json:"valid_types" yaml:"valid_types" mapstructure:"valid_types"`
}

// DefaultConfig returns the vocabularies used by the annual survey
func DefaultConfig() Config {
	return Config{
		Threshold: 90,
		MinLength: MinNameLength,
		MunicipalityKeywords: []string{
			"municipio", "municipios", "camara municipal", "concelho",
		},
		ParishKeywords: []string{
			"freguesia", "freguesias", "junta de freguesia", "uniao de freguesias", "uniao das freguesias",
		},
		ValidTypes: []string{
			"municipios",
			"freguesias",
			"comunidades intermunicipais",
			"areas metropolitanas",
			"associacoes de municipios",
			"associacoes de freguesias",
			"entidades intermunicipais",
			"servicos municipalizados",
			"empresas locais",
		},
	}
}

// Outcome is the classification of one entity cell
type Outcome struct {
	// Value is the cleaned name for valid outcomes and the raw text otherwise
	Value  string        `json:"value"`
	Status survey.Status `json:"status"`
	Step   Step          `json:"step"`
	// Match is the reference list entry for list hits
	Match string  `json:"match,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Valid reports whether the outcome accepted the value
func (o Outcome) Valid() bool { return o.Status == survey.StatusValid }

// EntityValidator classifies entity names through an ordered fallback chain
type EntityValidator struct {
	cfg        Config
	concelhos  *ReferenceList
	freguesias *ReferenceList
	prefixes   *normalize.Prefixes
	abbrev     *normalize.AbbrevRules
	localDebug bool
}

// NewEntityValidator creates a validator. Nil prefixes or abbreviation
// rules disable that cleaning step.
func NewEntityValidator(cfg Config, concelhos, freguesias *ReferenceList, prefixes *normalize.Prefixes, abbrev *normalize.AbbrevRules) *EntityValidator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.MinLength < MinNameLength {
		cfg.MinLength = MinNameLength
	}
	return &EntityValidator{
		cfg:        cfg,
		concelhos:  concelhos,
		freguesias: freguesias,
		prefixes:   prefixes,
		abbrev:     abbrev,
	}
}

// SetDebug enables per-value tracing
func (v *EntityValidator) SetDebug(enabled bool) { v.localDebug = enabled }

// Validate runs the chain over one cell. Invalid non-empty values are
// recorded in acc, which may be nil.
//
//  1. empty or at most MinLength runes once normalized: invalid
//  2. concelho list hit: the normalized list entry
//  3. freguesia list hit: the normalized list entry
//  4. municipality or parish keyword in the cleaned value: the cleaned value
//  5. type hint in the valid type vocabulary: the cleaned value
//  6. otherwise invalid, keeping the raw value
//
// A parish type hint tries the freguesia list before the concelho list.
func (v *EntityValidator) Validate(raw survey.Cell, typeHint string, acc *InvalidEntities) Outcome {
	rawText := raw.AsText()
	if raw.IsEmpty() {
		return Outcome{Value: rawText, Status: survey.StatusInvalid, Step: StepEmpty}
	}

	cleaned := v.abbrev.Expand(rawText)
	if utf8.RuneCountInString(normalize.Text(rawText)) <= v.cfg.MinLength || cleaned == "" {
		debug.DebugOutput(v.localDebug, "entity %q rejected: too short", rawText)
		acc.Add(rawText)
		return Outcome{Value: rawText, Status: survey.StatusInvalid, Step: StepTooShort}
	}

	hint := normalize.Text(typeHint)
	lists := []struct {
		list *ReferenceList
		step Step
	}{
		{v.concelhos, StepConcelho},
		{v.freguesias, StepFreguesia},
	}
	if hint != "" && normalize.In(hint, v.cfg.ParishKeywords) {
		lists[0], lists[1] = lists[1], lists[0]
	}

	query := v.prefixes.Strip(cleaned)
	if query == "" {
		query = cleaned
	}
	for _, l := range lists {
		if l.list.Len() == 0 {
			continue
		}
		m, ok := fuzzy.Best(query, l.list.Entries)
		if ok && m.Score >= v.cfg.Threshold {
			debug.DebugOutput(v.localDebug, "entity %q matched %s %q (%.1f)", rawText, l.step, m.Candidate, m.Score)
			return Outcome{
				Value:  normalize.Text(m.Candidate),
				Status: survey.StatusValid,
				Step:   l.step,
				Match:  m.Candidate,
				Score:  m.Score,
			}
		}
	}

	if normalize.ContainsAny(cleaned, v.cfg.MunicipalityKeywords) || normalize.ContainsAny(cleaned, v.cfg.ParishKeywords) {
		return Outcome{Value: cleaned, Status: survey.StatusValid, Step: StepKeyword}
	}

	if hint != "" && normalize.In(hint, v.cfg.ValidTypes) {
		return Outcome{Value: cleaned, Status: survey.StatusValid, Step: StepTypeHint}
	}

	debug.DebugOutput(v.localDebug, "entity %q invalid after full chain (hint %q)", rawText, typeHint)
	acc.Add(rawText)
	return Outcome{Value: rawText, Status: survey.StatusInvalid, Step: StepFallback}
}

// ValidateTable validates every row of t. The type hint comes from
// typeColumn when the table has it. The returned accumulator holds only
// this table's invalid values.
func (v *EntityValidator) ValidateTable(t *survey.Table, nameColumn, typeColumn string) ([]Outcome, *InvalidEntities) {
	acc := NewInvalidEntities()
	outcomes := make([]Outcome, t.Len())
	for i := range t.Rows {
		outcomes[i] = v.Validate(t.Value(i, nameColumn), t.Value(i, typeColumn).AsText(), acc)
	}
	return outcomes, acc
}
