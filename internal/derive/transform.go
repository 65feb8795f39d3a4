package derive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

// TransformKind selects a per-cell value transform for a whole group
type TransformKind string

const (
	// TransformCount keeps non-negative integers and turns anything else into 0
	TransformCount TransformKind = "count"
	// TransformYesNo maps sim to 1, nao to 0 and anything else to empty
	TransformYesNo TransformKind = "yes-no"
	// TransformInteger keeps exact integers and empties anything else
	TransformInteger TransformKind = "integer"
)

// Transform applies one value transform to every column of a group
type Transform struct {
	Group string        `json:"group" yaml:"group" mapstructure:"group"`
	Kind  TransformKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	// SkipKeywords leaves columns whose header contains a keyword untouched
	SkipKeywords []string `json:"skip_keywords,omitempty" yaml:"skip_keywords,omitempty" mapstructure:"skip_keywords"`
	// HeaderPrefixes are patterns removed from the group's headers
	HeaderPrefixes []string `json:"header_prefixes,omitempty" yaml:"header_prefixes,omitempty" mapstructure:"header_prefixes"`
}

// DefaultTransforms are the group transforms of the annual survey
func DefaultTransforms() []Transform {
	return []Transform{
		{
			Group: survey.GroupTrainings,
			Kind:  TransformCount,
			HeaderPrefixes: []string{
				`^\s*(n\.?o|numero)\s+(de\s+)?formandos\s*(em|[-:])?\s*`,
			},
		},
		{Group: survey.GroupInterests, Kind: TransformYesNo, SkipKeywords: []string{"comentario"}},
		{Group: survey.GroupAvailability, Kind: TransformYesNo},
		{Group: survey.GroupTeaching, Kind: TransformInteger},
	}
}

// Apply transforms the group of ds it names; a missing group is a no-op
func (tr Transform) Apply(ds *survey.Dataset) error {
	t := ds.Group(tr.Group)
	if t == nil {
		return nil
	}

	if len(tr.HeaderPrefixes) > 0 {
		if err := stripHeaders(t, tr.HeaderPrefixes); err != nil {
			return &survey.ConfigurationError{Field: "transforms." + tr.Group, Reason: err.Error()}
		}
	}

	var fn func(survey.Cell) survey.Cell
	switch tr.Kind {
	case TransformCount:
		fn = count
	case TransformYesNo:
		fn = yesNo
	case TransformInteger:
		fn = integer
	default:
		return &survey.ConfigurationError{Field: "transforms." + tr.Group, Reason: fmt.Sprintf("unknown kind %q", tr.Kind)}
	}

	for c, col := range t.Columns {
		if normalize.ContainsAny(col, tr.SkipKeywords) {
			continue
		}
		for r := range t.Rows {
			t.Rows[r][c] = fn(t.Rows[r][c])
		}
	}
	return nil
}

// stripHeaders removes prefixes from headers, keeping the original header
// when stripping would leave it blank. The headers are already normalized.
func stripHeaders(t *survey.Table, patterns []string) error {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return err
		}
		res = append(res, re)
	}
	for i, col := range t.Columns {
		h := col
		for _, re := range res {
			h = re.ReplaceAllString(h, "")
		}
		if h = strings.TrimSpace(h); h != "" {
			t.Columns[i] = h
		}
	}
	return nil
}

func count(c survey.Cell) survey.Cell {
	n, ok := c.AsInt()
	if !ok || n < 0 {
		return survey.Int(0)
	}
	return survey.Int(n)
}

func yesNo(c survey.Cell) survey.Cell {
	switch normalize.Value(c) {
	case "sim":
		return survey.Int(1)
	case "nao":
		return survey.Int(0)
	default:
		return survey.Empty()
	}
}

func integer(c survey.Cell) survey.Cell {
	if n, ok := c.AsInt(); ok {
		return survey.Int(n)
	}
	return survey.Empty()
}

// PruneEmpty drops the columns of t whose cells are all empty or sentinel
// and returns their names
func PruneEmpty(t *survey.Table, sentinels normalize.Sentinels) []string {
	if t.Len() == 0 {
		return nil
	}
	var empty []string
	for c, col := range t.Columns {
		allNull := true
		for _, row := range t.Rows {
			if !sentinels.IsNull(row[c]) {
				allNull = false
				break
			}
		}
		if allNull {
			empty = append(empty, col)
		}
	}
	t.DropColumns(empty...)
	return empty
}
