package columns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fefal-etl/internal/fuzzy"
	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

// DefaultThreshold is the alias match threshold when neither the column nor
// the schema sets one
const DefaultThreshold = 80.0

// Implied is a categorical column synthesized when a column resolves only
// through an alias
type Implied struct {
	Column string `json:"column" yaml:"column" mapstructure:"column"`
	Value  string `json:"value" yaml:"value" mapstructure:"value"`
}

// ColumnSpec describes one canonical target column
type ColumnSpec struct {
	Name      string   `json:"name" yaml:"name" mapstructure:"name"`
	Aliases   []string `json:"aliases,omitempty" yaml:"aliases,omitempty" mapstructure:"aliases"`
	Threshold float64  `json:"threshold,omitempty" yaml:"threshold,omitempty" mapstructure:"threshold"`
	Critical  bool     `json:"critical" yaml:"critical" mapstructure:"critical"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
	Implies   *Implied `json:"implies,omitempty" yaml:"implies,omitempty" mapstructure:"implies"`
}

// Schema is the ordered set of canonical columns
type Schema struct {
	Columns          []ColumnSpec `json:"columns" yaml:"columns" mapstructure:"columns"`
	DefaultThreshold float64      `json:"default_threshold,omitempty" yaml:"default_threshold,omitempty" mapstructure:"default_threshold"`
}

// Validate checks the schema for empty or repeated names and bad thresholds
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return &survey.ConfigurationError{Field: "schema.columns", Reason: "no canonical columns"}
	}
	seen := make(map[string]bool)
	for i, c := range s.Columns {
		name := normalize.Text(c.Name)
		if name == "" {
			return &survey.ConfigurationError{Field: fmt.Sprintf("schema.columns[%d]", i), Reason: "empty name"}
		}
		if seen[name] {
			return &survey.ConfigurationError{Field: "schema.columns." + c.Name, Reason: "defined twice"}
		}
		if c.Threshold < 0 || c.Threshold > 100 {
			return &survey.ConfigurationError{Field: "schema.columns." + c.Name, Reason: fmt.Sprintf("threshold %.1f outside 0-100", c.Threshold)}
		}
		if c.Implies != nil && strings.TrimSpace(c.Implies.Column) == "" {
			return &survey.ConfigurationError{Field: "schema.columns." + c.Name + ".implies", Reason: "empty column"}
		}
		seen[name] = true
	}
	return nil
}

// Spec returns the named column spec
func (s Schema) Spec(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

func (s Schema) threshold(c ColumnSpec) float64 {
	switch {
	case c.Threshold > 0:
		return c.Threshold
	case s.DefaultThreshold > 0:
		return s.DefaultThreshold
	default:
		return DefaultThreshold
	}
}

// Method records how a canonical column was found
type Method string

const (
	MethodExact       Method = "exact"
	MethodLearned     Method = "learned"
	MethodAlias       Method = "alias"
	MethodSynthesized Method = "synthesized"
)

// Match is one resolved canonical column
type Match struct {
	Canonical string  `json:"canonical"`
	Header    string  `json:"header,omitempty"`
	Method    Method  `json:"method"`
	Score     float64 `json:"score,omitempty"`
}

// SynthesizedColumn is a column added with a fixed value
type SynthesizedColumn struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Resolution is the outcome of matching a header row against a schema
type Resolution struct {
	// Mapping is raw header -> canonical name, including learned renames of
	// headers outside the schema
	Mapping map[string]string `json:"mapping"`
	// Order is the header order after the resolution is applied
	Order           []string            `json:"order"`
	Matches         []Match             `json:"matches"`
	MissingCritical []string            `json:"missing_critical,omitempty"`
	MissingOptional []string            `json:"missing_optional,omitempty"`
	Synthesized     []SynthesizedColumn `json:"synthesized,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
}

// Err returns a *ColumnResolutionError when critical columns are missing
func (r *Resolution) Err() error {
	if len(r.MissingCritical) == 0 {
		return nil
	}
	return &ColumnResolutionError{Missing: append([]string(nil), r.MissingCritical...)}
}

// Resolve matches headers against the schema. Every target first tries an
// exact normalized match, then learned renames, then its aliases through
// the fuzzy matcher. Each pass runs over all targets before the next pass
// starts so a fuzzy alias never takes a header another target matches
// exactly. A header is claimed at most once.
//
// learned maps an original header to its canonical name. The returned
// error is a *ColumnResolutionError when critical columns are missing; the
// resolution is returned either way.
func Resolve(headers []string, schema Schema, learned map[string]string) (*Resolution, error) {
	res := &Resolution{Mapping: make(map[string]string)}

	normHeaders := make([]string, len(headers))
	for i, h := range headers {
		normHeaders[i] = normalize.Text(h)
	}
	normLearned := normalizeLearned(learned)

	claimed := make([]bool, len(headers))
	found := make(map[string]Match, len(schema.Columns))

	claim := func(i int, spec ColumnSpec, method Method, score float64) {
		claimed[i] = true
		m := Match{Canonical: spec.Name, Header: headers[i], Method: method, Score: score}
		found[spec.Name] = m
		if headers[i] != spec.Name {
			res.Mapping[headers[i]] = spec.Name
		}
	}

	// exact
	for _, spec := range schema.Columns {
		target := normalize.Text(spec.Name)
		for i, h := range normHeaders {
			if !claimed[i] && h == target {
				claim(i, spec, MethodExact, 100)
				break
			}
		}
	}

	// learned renames
	for _, spec := range schema.Columns {
		if _, ok := found[spec.Name]; ok {
			continue
		}
		target := normalize.Text(spec.Name)
		for i, h := range normHeaders {
			if !claimed[i] && normalize.Text(normLearned[h]) == target {
				claim(i, spec, MethodLearned, 100)
				break
			}
		}
	}

	// fuzzy aliases
	for _, spec := range schema.Columns {
		if _, ok := found[spec.Name]; ok {
			continue
		}
		var open []string
		var openIdx []int
		for i := range headers {
			if !claimed[i] {
				open = append(open, headers[i])
				openIdx = append(openIdx, i)
			}
		}
		threshold := schema.threshold(spec)
		for _, alias := range spec.Aliases {
			m, ok := fuzzy.Best(alias, open)
			if ok && m.Score >= threshold {
				claim(openIdx[m.Index], spec, MethodAlias, m.Score)
				break
			}
		}
	}

	// learned renames for headers outside the schema
	for i, h := range headers {
		if claimed[i] {
			continue
		}
		if canonical, ok := normLearned[normHeaders[i]]; ok && canonical != "" && canonical != h {
			res.Mapping[h] = canonical
		}
	}

	// implied categorical columns
	implied := make(map[string]string)
	var impliedOrder []string
	for _, spec := range schema.Columns {
		m, ok := found[spec.Name]
		if !ok || m.Method != MethodAlias || spec.Implies == nil {
			continue
		}
		col := spec.Implies.Column
		if _, resolved := found[col]; resolved || res.hasHeader(headers, col) {
			continue
		}
		if _, dup := implied[col]; !dup {
			implied[col] = spec.Implies.Value
			impliedOrder = append(impliedOrder, col)
		}
	}

	for _, spec := range schema.Columns {
		m, ok := found[spec.Name]
		if ok {
			res.Matches = append(res.Matches, m)
			continue
		}
		if value, ok := implied[spec.Name]; ok {
			res.synthesize(spec.Name, value)
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %q synthesized with %q from an alias match", spec.Name, value))
			delete(implied, spec.Name)
			continue
		}
		if spec.Critical {
			res.MissingCritical = append(res.MissingCritical, spec.Name)
			continue
		}
		res.MissingOptional = append(res.MissingOptional, spec.Name)
		res.synthesize(spec.Name, spec.Default)
		res.Warnings = append(res.Warnings, fmt.Sprintf("optional column %q not found, filled with %q", spec.Name, spec.Default))
	}
	for _, col := range impliedOrder {
		if value, ok := implied[col]; ok {
			res.synthesize(col, value)
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %q synthesized with %q from an alias match", col, value))
		}
	}

	for _, h := range headers {
		if canonical, ok := res.Mapping[h]; ok {
			res.Order = append(res.Order, canonical)
		} else {
			res.Order = append(res.Order, h)
		}
	}
	for _, s := range res.Synthesized {
		res.Order = append(res.Order, s.Column)
	}

	return res, res.Err()
}

// hasHeader reports whether col is already present, literally or by rename
func (r *Resolution) hasHeader(headers []string, col string) bool {
	target := normalize.Text(col)
	for _, h := range headers {
		if normalize.Text(h) == target || normalize.Text(r.Mapping[h]) == target {
			return true
		}
	}
	return false
}

func (r *Resolution) synthesize(col, value string) {
	r.Synthesized = append(r.Synthesized, SynthesizedColumn{Column: col, Value: value})
	r.Matches = append(r.Matches, Match{Canonical: col, Method: MethodSynthesized})
}

// Apply renames mapped headers of t and appends the synthesized columns
func (r *Resolution) Apply(t *survey.Table) {
	t.Rename(r.Mapping)
	for _, s := range r.Synthesized {
		values := make([]survey.Cell, t.Len())
		for i := range values {
			values[i] = survey.Text(s.Value)
		}
		t.AppendColumn(s.Column, values)
	}
}

// ApplyLearned renames headers of t that have a learned mapping and returns
// the applied renames
func ApplyLearned(t *survey.Table, learned map[string]string) map[string]string {
	normLearned := normalizeLearned(learned)
	applied := make(map[string]string)
	for _, h := range t.Columns {
		if canonical, ok := normLearned[normalize.Text(h)]; ok && canonical != "" && canonical != h {
			applied[h] = canonical
		}
	}
	t.Rename(applied)
	return applied
}

// normalizeLearned keys learned renames by normalized header. When two
// originals normalize to the same header the lexically smallest one wins.
func normalizeLearned(learned map[string]string) map[string]string {
	origs := make([]string, 0, len(learned))
	for orig := range learned {
		origs = append(origs, orig)
	}
	sort.Strings(origs)

	out := make(map[string]string, len(learned))
	for _, orig := range origs {
		k := normalize.Text(orig)
		if _, ok := out[k]; !ok {
			out[k] = learned[orig]
		}
	}
	return out
}

// CleanHeader trims and collapses whitespace in a header, keeping its case
// and accents
func CleanHeader(h string) string {
	return strings.Join(strings.Fields(h), " ")
}
