package pipeline

import (
	"github.com/goccy/go-yaml"

	"github.com/fefal-etl/internal/columns"
	"github.com/fefal-etl/internal/dedupe"
	"github.com/fefal-etl/internal/registry"
	"github.com/fefal-etl/internal/sheet"
	"github.com/fefal-etl/internal/survey"
	"github.com/fefal-etl/internal/validation"
)

// ReasonColumn leads every review sheet
const ReasonColumn = "motivo_remocao"

// Sheet names of the result workbook besides the group sheets
const (
	SheetAllData    = "all_data"
	SheetDuplicates = "duplicados"
	SheetUnmatched  = "entidades_invalidas"
	SheetRemoved    = "removidos"
)

// GroupLayout is the final header of one column group
type GroupLayout struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Result is the output of a completed run. Partitions is the only part
// changed by manual review.
type Result struct {
	Year      int `json:"year"`
	InputRows int `json:"input_rows"`

	Layout     []GroupLayout      `json:"layout"`
	Partitions *dedupe.Partitions `json:"partitions"`

	// Removed are the rows dropped by the hard pre-filters
	Removed        []survey.RemovalRecord      `json:"removed"`
	RemovedColumns []string                    `json:"removed_columns"`
	Invalid        *validation.InvalidEntities `json:"-"`
	Resolution     *columns.Resolution         `json:"resolution"`
	Collisions     []registry.Collision        `json:"collisions,omitempty"`
	Warnings       []string                    `json:"warnings,omitempty"`
}

// Summary counts a result
type Summary struct {
	Year          int            `json:"year" yaml:"year"`
	InputRows     int            `json:"input_rows" yaml:"input_rows"`
	Final         int            `json:"final" yaml:"final"`
	Duplicates    int            `json:"duplicates" yaml:"duplicates"`
	Unmatched     int            `json:"unmatched" yaml:"unmatched"`
	Removed       map[string]int `json:"removed" yaml:"removed"`
	InvalidValues []string       `json:"invalid_values,omitempty" yaml:"invalid_values,omitempty"`
	Warnings      []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Summary counts partitions and removals
func (r *Result) Summary() Summary {
	s := Summary{
		Year:          r.Year,
		InputRows:     r.InputRows,
		Final:         len(r.Partitions.Final),
		Duplicates:    len(r.Partitions.Duplicates),
		Unmatched:     len(r.Partitions.Unmatched),
		Removed:       make(map[string]int),
		InvalidValues: r.Invalid.Values(),
		Warnings:      r.Warnings,
	}
	for _, rm := range r.Removed {
		s.Removed[string(rm.Reason)]++
	}
	return s
}

// YAML renders the summary
func (s Summary) YAML() ([]byte, error) {
	return yaml.MarshalWithOptions(s, yaml.Indent(2), yaml.IndentSequence(true))
}

// Groups returns one table per column group holding the final rows
func (r *Result) Groups() []*survey.Table {
	out := make([]*survey.Table, 0, len(r.Layout))
	offset := 0
	for _, g := range r.Layout {
		t := survey.NewTable(g.Name, g.Columns)
		for _, e := range r.Partitions.Final {
			t.Rows = append(t.Rows, e.Values[offset:offset+len(g.Columns)].Clone())
		}
		out = append(out, t)
		offset += len(g.Columns)
	}
	return out
}

// Combined returns the final rows with every group side by side
func (r *Result) Combined() *survey.Table {
	t := survey.NewTable(SheetAllData, r.Partitions.Columns)
	for _, e := range r.Partitions.Final {
		t.Rows = append(t.Rows, e.Values.Clone())
	}
	return t
}

// Workbook lays the result out as sheets: the groups, the combined view,
// duplicates, unmatched rows and removed rows
func (r *Result) Workbook() sheet.Workbook {
	wb := sheet.Workbook(r.Groups())
	wb = append(wb,
		r.Combined(),
		reasonTable(SheetDuplicates, r.Partitions.Columns, entriesRows(r.Partitions.Duplicates)),
		reasonTable(SheetUnmatched, r.Partitions.Columns, entriesRows(r.Partitions.Unmatched)),
		reasonTable(SheetRemoved, r.RemovedColumns, removedRows(r.Removed)),
	)
	return wb
}

type reasonRow struct {
	reason survey.Reason
	values survey.Row
}

func entriesRows(entries []dedupe.Entry) []reasonRow {
	out := make([]reasonRow, len(entries))
	for i, e := range entries {
		out[i] = reasonRow{reason: e.Reason, values: e.Values}
	}
	return out
}

func removedRows(removed []survey.RemovalRecord) []reasonRow {
	out := make([]reasonRow, len(removed))
	for i, rm := range removed {
		out[i] = reasonRow{reason: rm.Reason, values: rm.Values}
	}
	return out
}

func reasonTable(name string, cols []string, rows []reasonRow) *survey.Table {
	t := survey.NewTable(name, append([]string{ReasonColumn}, cols...))
	for _, rr := range rows {
		row := make(survey.Row, 0, len(rr.values)+1)
		row = append(row, survey.Text(rr.reason.Label()))
		row = append(row, rr.values...)
		t.Rows = append(t.Rows, row)
	}
	return t
}
