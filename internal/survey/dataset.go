package survey

import "fmt"

// Dataset is the input split into column groups. Every group table has the
// same row count and row i of each group describes the same response.
type Dataset struct {
	Groups []*Table
	// Lines holds the spreadsheet line of each row; the header is line 1
	Lines []int
}

// SplitGroups slices sheet into one table per group. Columns outside every
// group are discarded.
func SplitGroups(sheet *Table, groups []ColumnGroup) (*Dataset, error) {
	if err := ValidateGroups(groups, len(sheet.Columns)); err != nil {
		return nil, err
	}

	ds := &Dataset{Lines: make([]int, sheet.Len())}
	for i := range ds.Lines {
		ds.Lines[i] = i + 2
	}

	for _, g := range groups {
		lo, hi := g.Start-1, g.End
		t := NewTable(g.Name, sheet.Columns[lo:hi])
		t.Rows = make([]Row, sheet.Len())
		for r, row := range sheet.Rows {
			out := make(Row, hi-lo)
			for c := lo; c < hi && c < len(row); c++ {
				out[c-lo] = row[c]
			}
			t.Rows[r] = out
		}
		ds.Groups = append(ds.Groups, t)
	}
	return ds, nil
}

// Len returns the row count
func (d *Dataset) Len() int { return len(d.Lines) }

// Group returns the named group table, or nil
func (d *Dataset) Group(name string) *Table {
	for _, g := range d.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// MustGroup is Group returning an error for a missing group
func (d *Dataset) MustGroup(name string) (*Table, error) {
	g := d.Group(name)
	if g == nil {
		return nil, &ConfigurationError{Field: "groups." + name, Reason: "group not defined"}
	}
	return g, nil
}

// Columns returns the combined header across groups
func (d *Dataset) Columns() []string {
	var cols []string
	for _, g := range d.Groups {
		cols = append(cols, g.Columns...)
	}
	return cols
}

// Row returns the combined values of row i across groups
func (d *Dataset) Row(i int) Row {
	var row Row
	for _, g := range d.Groups {
		row = append(row, g.Rows[i]...)
	}
	return row
}

// Combined concatenates every group side by side
func (d *Dataset) Combined(name string) *Table {
	t := NewTable(name, d.Columns())
	t.Rows = make([]Row, d.Len())
	for i := range t.Rows {
		t.Rows[i] = d.Row(i)
	}
	return t
}

// Select returns a dataset holding only the given rows, in that order
func (d *Dataset) Select(rows []int) *Dataset {
	out := &Dataset{Lines: make([]int, len(rows))}
	for j, i := range rows {
		out.Lines[j] = d.Lines[i]
	}
	for _, g := range d.Groups {
		t := NewTable(g.Name, g.Columns)
		t.Rows = make([]Row, len(rows))
		for j, i := range rows {
			t.Rows[j] = g.Rows[i].Clone()
		}
		out.Groups = append(out.Groups, t)
	}
	return out
}

// Filter keeps the rows for which keep returns true and returns the
// indices (before filtering) of the dropped rows
func (d *Dataset) Filter(keep func(i int) bool) []int {
	var kept, dropped []int
	for i := 0; i < d.Len(); i++ {
		if keep(i) {
			kept = append(kept, i)
		} else {
			dropped = append(dropped, i)
		}
	}
	if len(dropped) == 0 {
		return nil
	}
	*d = *d.Select(kept)
	return dropped
}

// LineIndex returns the row index of a spreadsheet line
func (d *Dataset) LineIndex(line int) (int, error) {
	for i, l := range d.Lines {
		if l == line {
			return i, nil
		}
	}
	return -1, fmt.Errorf("line %d not in dataset", line)
}
