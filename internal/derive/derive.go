// Package derive computes columns from other columns and places them
// relative to an anchor column once the structural columns are final.
package derive

import (
	"fmt"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

// AnchorLast places a column relative to the last column of its group
const AnchorLast = "$last"

// Kind selects how a derived column is computed
type Kind string

const (
	// KindDuration is Sources[1] - Sources[0] in whole seconds; values <= 0
	// are left empty
	KindDuration Kind = "duration"
	// KindSubmitted is "sim" when Sources[0] holds a value, "nao" otherwise
	KindSubmitted Kind = "submitted"
	// KindIntegerSum adds the exact-integer numeric cells of Sources, or of
	// the whole group when Sources is empty. Fractional values are skipped.
	KindIntegerSum Kind = "integer-sum"
	// KindConstant fills the column with Value
	KindConstant Kind = "constant"
)

// Spec declares one derived column
type Spec struct {
	Name    string   `json:"name" yaml:"name" mapstructure:"name"`
	Group   string   `json:"group" yaml:"group" mapstructure:"group"`
	Kind    Kind     `json:"kind" yaml:"kind" mapstructure:"kind"`
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty" mapstructure:"sources"`
	Value   string   `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	// Anchor is the column the new one is placed against; AnchorLast or a
	// missing anchor append at the end
	Anchor string `json:"anchor,omitempty" yaml:"anchor,omitempty" mapstructure:"anchor"`
	// Offset is relative to the anchor; 1 places the column right after it
	Offset int `json:"offset,omitempty" yaml:"offset,omitempty" mapstructure:"offset"`
}

// Validate checks that the derived column is fully declared
func (s Spec) Validate() error {
	field := "derived." + s.Name
	switch {
	case s.Name == "":
		return &survey.ConfigurationError{Field: "derived", Reason: "derived column with empty name"}
	case s.Group == "":
		return &survey.ConfigurationError{Field: field, Reason: "missing group"}
	}
	switch s.Kind {
	case KindDuration:
		if len(s.Sources) != 2 {
			return &survey.ConfigurationError{Field: field, Reason: "duration needs start and end sources"}
		}
	case KindSubmitted:
		if len(s.Sources) != 1 {
			return &survey.ConfigurationError{Field: field, Reason: "submitted needs one source"}
		}
	case KindIntegerSum, KindConstant:
	default:
		return &survey.ConfigurationError{Field: field, Reason: fmt.Sprintf("unknown kind %q", s.Kind)}
	}
	return nil
}

// DefaultSpecs are the derived columns of the annual survey
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Name:    "tempo_realizacao",
			Group:   survey.GroupIdentification,
			Kind:    KindDuration,
			Sources: []string{"data_inicio", "data_fim"},
			Anchor:  "data_fim",
			Offset:  1,
		},
		{
			Name:    "foi_submetido",
			Group:   survey.GroupIdentification,
			Kind:    KindSubmitted,
			Sources: []string{"data_submissao"},
			Anchor:  "data_submissao",
			Offset:  1,
		},
		{
			Name:   "n_total_formandos",
			Group:  survey.GroupTrainings,
			Kind:   KindIntegerSum,
			Anchor: AnchorLast,
			Offset: 1,
		},
	}
}

// Deriver computes derived columns
type Deriver struct {
	Sentinels normalize.Sentinels
	Layouts   []string
}

// Apply computes every spec against ds in order. Specs for groups the
// dataset lacks are skipped and reported.
func (d *Deriver) Apply(ds *survey.Dataset, specs []Spec) (skipped []string, err error) {
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		t := ds.Group(spec.Group)
		if t == nil {
			skipped = append(skipped, spec.Name)
			continue
		}
		values, ok := d.Compute(t, spec)
		if !ok {
			skipped = append(skipped, spec.Name)
			continue
		}
		Place(t, spec, values)
	}
	return skipped, nil
}

// Compute returns the column values for spec over t. It reports false when
// the sources are missing, or hold no values while t already has the
// column; the existing column is then kept as is.
func (d *Deriver) Compute(t *survey.Table, spec Spec) ([]survey.Cell, bool) {
	for _, src := range spec.Sources {
		if !t.Has(src) {
			return nil, false
		}
	}
	if t.Has(spec.Name) && len(spec.Sources) > 0 && d.sourcesEmpty(t, spec) {
		return nil, false
	}

	out := make([]survey.Cell, t.Len())
	for i := range out {
		switch spec.Kind {
		case KindDuration:
			out[i] = d.duration(t.Value(i, spec.Sources[0]), t.Value(i, spec.Sources[1]))
		case KindSubmitted:
			if d.Sentinels.IsNull(t.Value(i, spec.Sources[0])) {
				out[i] = survey.Text("nao")
			} else {
				out[i] = survey.Text("sim")
			}
		case KindIntegerSum:
			out[i] = survey.Int(integerSum(t, i, spec))
		case KindConstant:
			out[i] = survey.ParseCell(spec.Value, nil)
		}
	}
	return out, true
}

// sourcesEmpty reports whether every source cell of every row is null
func (d *Deriver) sourcesEmpty(t *survey.Table, spec Spec) bool {
	for _, src := range spec.Sources {
		for _, c := range t.Column(src) {
			if !d.Sentinels.IsNull(c) {
				return false
			}
		}
	}
	return true
}

func (d *Deriver) duration(start, end survey.Cell) survey.Cell {
	s, ok1 := start.AsTime(d.Layouts)
	e, ok2 := end.AsTime(d.Layouts)
	if !ok1 || !ok2 {
		return survey.Empty()
	}
	secs := int64(e.Sub(s).Seconds())
	if secs <= 0 {
		return survey.Empty()
	}
	return survey.Int(secs)
}

func integerSum(t *survey.Table, row int, spec Spec) int64 {
	var sum int64
	add := func(c survey.Cell) {
		if n, ok := c.AsInt(); ok {
			sum += n
		}
	}

	if len(spec.Sources) > 0 {
		for _, src := range spec.Sources {
			add(t.Value(row, src))
		}
		return sum
	}
	for i, col := range t.Columns {
		if col != spec.Name {
			add(t.Rows[row][i])
		}
	}
	return sum
}

// Place inserts values at the anchor position of spec, replacing an
// existing column with the same name
func Place(t *survey.Table, spec Spec, values []survey.Cell) {
	if t.Has(spec.Name) {
		t.InsertColumn(0, spec.Name, values)
		return
	}

	at := len(t.Columns)
	switch {
	case spec.Anchor == AnchorLast:
		at = len(t.Columns) - 1 + spec.Offset
	case t.Has(spec.Anchor):
		at = t.Index(spec.Anchor) + spec.Offset
	}
	if at < 0 {
		at = 0
	}
	t.InsertColumn(at, spec.Name, values)
}
