package survey

import (
	"fmt"
)

// Default column group names, in their usual order
const (
	GroupIdentification = "identificacao"
	GroupTrainings      = "formacoes"
	GroupInterests      = "interesses"
	GroupAvailability   = "disponibilidade"
	GroupTeaching       = "tipo de ensino"
)

// DefaultGroupOrder is the group order used when none is configured
var DefaultGroupOrder = []string{
	GroupIdentification,
	GroupTrainings,
	GroupInterests,
	GroupAvailability,
	GroupTeaching,
}

// ColumnGroup is a named 1-based inclusive column range of the input header
type ColumnGroup struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name"`
	Start int    `json:"start" yaml:"start" mapstructure:"start"`
	End   int    `json:"end" yaml:"end" mapstructure:"end"`
}

// Width returns the number of columns the group spans
func (g ColumnGroup) Width() int { return g.End - g.Start + 1 }

// ValidateGroups checks that the groups are non-empty, monotonic,
// non-overlapping and within a header of width columns. A width of 0 skips
// the upper-bound check.
func ValidateGroups(groups []ColumnGroup, width int) error {
	if len(groups) == 0 {
		return &ConfigurationError{Field: "groups", Reason: "no column groups defined"}
	}

	seen := make(map[string]bool, len(groups))
	prevEnd := 0
	for _, g := range groups {
		field := "groups." + g.Name
		switch {
		case g.Name == "":
			return &ConfigurationError{Field: "groups", Reason: "group with empty name"}
		case seen[g.Name]:
			return &ConfigurationError{Field: field, Reason: "defined twice"}
		case g.Start < 1:
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("start %d must be at least 1", g.Start)}
		case g.End < g.Start:
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("end %d is before start %d", g.End, g.Start)}
		case g.Start <= prevEnd:
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("start %d overlaps previous group ending at %d", g.Start, prevEnd)}
		case width > 0 && g.End > width:
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("end %d exceeds header width %d", g.End, width)}
		}
		seen[g.Name] = true
		prevEnd = g.End
	}
	return nil
}
