package survey

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind tags the value held by a Cell
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	default:
		return "empty"
	}
}

// TimestampLayout is the layout used when a timestamp is rendered as text
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultTimeLayouts are tried in order by ParseCell
var DefaultTimeLayouts = []string{
	time.RFC3339,
	TimestampLayout,
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"1/2/06 15:04",
	"01-02-06 15:04",
	"01-02-06",
}

// Cell is one spreadsheet value: empty, text, number or timestamp
type Cell struct {
	kind Kind
	text string
	num  float64
	ts   time.Time
}

// Empty returns the empty cell
func Empty() Cell { return Cell{} }

// Text returns a text cell; blank text is treated as empty
func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{kind: KindText, text: s}
}

// Number returns a numeric cell; NaN is treated as empty
func Number(f float64) Cell {
	if math.IsNaN(f) {
		return Cell{}
	}
	return Cell{kind: KindNumber, num: f}
}

// Int returns a numeric cell holding an integer
func Int(i int64) Cell { return Number(float64(i)) }

// Timestamp returns a timestamp cell; the zero time is treated as empty
func Timestamp(t time.Time) Cell {
	if t.IsZero() {
		return Cell{}
	}
	return Cell{kind: KindTimestamp, ts: t}
}

// ParseCell converts a raw spreadsheet string into the narrowest cell kind
func ParseCell(raw string, layouts []string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Empty()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp(t)
		}
	}
	return Text(raw)
}

func (c Cell) Kind() Kind     { return c.kind }
func (c Cell) IsEmpty() bool  { return c.kind == KindEmpty }
func (c Cell) IsText() bool   { return c.kind == KindText }
func (c Cell) IsNumber() bool { return c.kind == KindNumber }

// AsText renders the cell as text; empty cells render as ""
func (c Cell) AsText() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindTimestamp:
		return c.ts.Format(TimestampLayout)
	default:
		return ""
	}
}

// AsFloat coerces numbers and numeric text
func (c Cell) AsFloat() (float64, bool) {
	switch c.kind {
	case KindNumber:
		return c.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.text), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsInt coerces to an integer only when the value is an exact integer
func (c Cell) AsInt() (int64, bool) {
	f, ok := c.AsFloat()
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// AsTime coerces timestamps and parsable text
func (c Cell) AsTime(layouts []string) (time.Time, bool) {
	switch c.kind {
	case KindTimestamp:
		return c.ts, true
	case KindText:
		s := strings.TrimSpace(c.text)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Equal compares kind and value
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == o.text
	case KindNumber:
		return c.num == o.num
	case KindTimestamp:
		return c.ts.Equal(o.ts)
	default:
		return true
	}
}

func (c Cell) String() string { return c.AsText() }

// MarshalJSON renders empty as null, numbers as numbers, the rest as text
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindEmpty:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(c.num)
	default:
		return json.Marshal(c.AsText())
	}
}

// UnmarshalJSON accepts null, numbers and strings
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*c = Empty()
	case float64:
		*c = Number(val)
	case string:
		*c = ParseCell(val, []string{TimestampLayout})
		if c.kind == KindNumber {
			*c = Text(val)
		}
	default:
		*c = Text(string(data))
	}
	return nil
}
