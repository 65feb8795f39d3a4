// Package sheet reads survey spreadsheets and writes result workbooks
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/fefal-etl/internal/logging"
	"github.com/fefal-etl/internal/survey"
)

// ReadOptions control spreadsheet parsing
type ReadOptions struct {
	// Sheet is the worksheet to read; empty reads the first one
	Sheet string
	// TimeLayouts are tried when a cell looks like a date
	TimeLayouts []string
}

// Read loads a .xlsx or .csv file with the header in the first row
func Read(path string, opts ReadOptions) (*survey.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer f.Close()
		return ReadCSV(f, filepath.Base(path), opts)
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open Excel file: %w", err)
		}
		defer f.Close()
		return readWorkbook(f, filepath.Base(path), opts)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet type: %s", filepath.Ext(path))
	}
}

// ReadXLSX loads a workbook from a stream
func ReadXLSX(r io.Reader, name string, opts ReadOptions) (*survey.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, name, opts)
}

func readWorkbook(f *excelize.File, name string, opts ReadOptions) (*survey.Table, error) {
	sheetName := opts.Sheet
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", name)
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	logging.Default().Debug().Str("file", name).Str("sheet", sheetName).Int("rows", len(rows)).Msg("workbook read")
	return build(name, rows, opts)
}

// ReadCSV loads comma or semicolon separated values
func ReadCSV(r io.Reader, name string, opts ReadOptions) (*survey.Table, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(first)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return build(name, rows, opts)
}

func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func build(name string, rows [][]string, opts ReadOptions) (*survey.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no header row", name)
	}
	layouts := opts.TimeLayouts
	if layouts == nil {
		layouts = survey.DefaultTimeLayouts
	}

	t := survey.NewTable(name, rows[0])
	width := len(t.Columns)
	for _, raw := range rows[1:] {
		row := make(survey.Row, width)
		for i := 0; i < width && i < len(raw); i++ {
			row[i] = survey.ParseCell(raw[i], layouts)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
