package survey

// Row is one spreadsheet row aligned with its table's Columns
type Row []Cell

// Clone returns a copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Equal reports whether both rows hold the same cells in the same order
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Table is an ordered set of columns over rows. The input sheet, each
// column group and every output partition are tables.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given header
func NewTable(name string, columns []string) *Table {
	return &Table{Name: name, Columns: append([]string(nil), columns...)}
}

// Len returns the row count
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the first column named col, or -1
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries col
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Value returns the cell at row/col, or Empty when the column is absent
func (t *Table) Value(row int, col string) Cell {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return Empty()
	}
	return t.Rows[row][i]
}

// Set overwrites one cell; it is a no-op for absent columns
func (t *Table) Set(row int, col string, c Cell) {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return
	}
	t.Rows[row][i] = c
}

// Column returns a copy of every value in col
func (t *Table) Column(col string) []Cell {
	i := t.Index(col)
	out := make([]Cell, len(t.Rows))
	if i < 0 {
		return out
	}
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// InsertColumn places a column at position at (clamped to the header).
// An existing column with the same name is overwritten in place instead.
// Nil values fill the column with empty cells.
func (t *Table) InsertColumn(at int, name string, values []Cell) {
	value := func(r int) Cell {
		if r < len(values) {
			return values[r]
		}
		return Empty()
	}

	if i := t.Index(name); i >= 0 {
		for r := range t.Rows {
			t.Rows[r][i] = value(r)
		}
		return
	}

	if at < 0 || at > len(t.Columns) {
		at = len(t.Columns)
	}
	t.Columns = append(t.Columns[:at], append([]string{name}, t.Columns[at:]...)...)
	for r, row := range t.Rows {
		row = append(row[:at], append(Row{value(r)}, row[at:]...)...)
		t.Rows[r] = row
	}
}

// AppendColumn adds a column at the end of the header
func (t *Table) AppendColumn(name string, values []Cell) {
	t.InsertColumn(len(t.Columns), name, values)
}

// DropColumns removes every named column that exists
func (t *Table) DropColumns(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]int, 0, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		if !drop[c] {
			keep = append(keep, i)
			cols = append(cols, c)
		}
	}
	if len(cols) == len(t.Columns) {
		return
	}
	for r, row := range t.Rows {
		out := make(Row, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		t.Rows[r] = out
	}
	t.Columns = cols
}

// Rename applies old -> new header renames
func (t *Table) Rename(renames map[string]string) {
	for i, c := range t.Columns {
		if n, ok := renames[c]; ok {
			t.Columns[i] = n
		}
	}
}

// Clone deep-copies the table
func (t *Table) Clone() *Table {
	out := NewTable(t.Name, t.Columns)
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}
