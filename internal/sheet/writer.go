package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fefal-etl/internal/survey"
)

const maxSheetName = 31

// Workbook is an ordered list of tables, one worksheet each
type Workbook []*survey.Table

// SheetName makes a table name safe for a worksheet tab
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if strings.TrimSpace(name) == "" {
		name = "sheet"
	}
	return name
}

// Build renders the workbook into an excelize file
func (wb Workbook) Build() (*excelize.File, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	used := make(map[string]bool)
	for i, t := range wb {
		name := SheetName(t.Name)
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			base := []rune(SheetName(t.Name))
			if len(base)+len(suffix) > maxSheetName {
				base = base[:maxSheetName-len(suffix)]
			}
			name = string(base) + suffix
		}
		used[strings.ToLower(name)] = true

		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %s: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}

		if err := writeTable(f, name, t); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeTable(f *excelize.File, sheetName string, t *survey.Table) error {
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheetName, err)
	}

	for r, row := range t.Rows {
		values := make([]interface{}, len(row))
		for i, c := range row {
			values[i] = cellValue(c)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+2, sheetName, err)
		}
	}
	return nil
}

func cellValue(c survey.Cell) interface{} {
	switch c.Kind() {
	case survey.KindEmpty:
		return nil
	case survey.KindNumber:
		f, _ := c.AsFloat()
		return f
	case survey.KindTimestamp:
		t, _ := c.AsTime(nil)
		return t.Format(survey.TimestampLayout)
	default:
		return c.AsText()
	}
}

// Write streams the workbook as .xlsx
func (wb Workbook) Write(w io.Writer) error {
	f, err := wb.Build()
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Save writes the workbook to path
func (wb Workbook) Save(path string) error {
	f, err := wb.Build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}
