package normalize

import (
	"github.com/fefal-etl/internal/survey"
)

// DefaultSentinels are the values treated as "no answer"
var DefaultSentinels = []string{"", "nd", "nan", "n/a", "na", "não definido", "sem dados"}

// Value normalizes a text cell; other kinds yield ""
func Value(c survey.Cell) string {
	if !c.IsText() {
		return ""
	}
	return Text(c.AsText())
}

// Sentinels is a normalized set of placeholder values
type Sentinels map[string]struct{}

// NewSentinels normalizes and indexes the given placeholder values
func NewSentinels(values []string) Sentinels {
	s := make(Sentinels, len(values))
	for _, v := range values {
		s[Text(v)] = struct{}{}
	}
	return s
}

// IsNull reports whether the cell is empty or its text is a sentinel
func (s Sentinels) IsNull(c survey.Cell) bool {
	if c.IsEmpty() {
		return true
	}
	if !c.IsText() {
		return false
	}
	_, ok := s[Text(c.AsText())]
	return ok
}

// CountNull counts empty or sentinel cells in a row
func (s Sentinels) CountNull(row survey.Row) int {
	n := 0
	for _, c := range row {
		if s.IsNull(c) {
			n++
		}
	}
	return n
}
