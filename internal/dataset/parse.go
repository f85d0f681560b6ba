// Package dataset parses uploaded spreadsheets and keeps them as parquet
// snapshots in the object store, indexed by the catalog.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetsense/sheetsense/internal/table"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptySheet        = errors.New("sheet has no header row")
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// FormatOf derives the upload format from a file name.
func FormatOf(filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q (expected .xlsx or .csv)", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Parse reads the first sheet of an .xlsx workbook or a .csv file. The
// first row is the header.
func Parse(filename string, r io.Reader) (*table.Table, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readWorkbook(r)
	case FormatCSV:
		records, err = readCSV(r)
	}
	if err != nil {
		return nil, err
	}
	return build(filename, records)
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	displayed, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	for i, row := range displayed {
		if i >= len(raw) {
			break
		}
		for j, cell := range row {
			if j < len(raw[i]) && formattedNumber(cell, raw[i][j]) {
				row[j] = raw[i][j]
			}
		}
	}
	return displayed, nil
}

// formattedNumber reports whether a displayed cell is a number format
// (grouping, currency, percent, accounting parentheses) applied to a raw
// numeric value. Dates and text keep their displayed form.
func formattedNumber(displayed, raw string) bool {
	if displayed == raw {
		return false
	}
	if _, ok := table.ParseNumber(raw); !ok {
		return false
	}
	text := strings.TrimSpace(displayed)
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = "-" + strings.TrimSpace(text[1:len(text)-1])
	}
	text = strings.TrimSuffix(text, "%")
	text = strings.TrimFunc(text, func(r rune) bool {
		return strings.ContainsRune("$€£¥ ", r)
	})
	text = strings.Replace(text, "-$", "-", 1)
	_, ok := table.ParseNumber(text)
	return ok
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

func build(name string, records [][]string) (*table.Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptySheet
	}
	width := 0
	for _, record := range records {
		width = max(width, len(record))
	}
	if width == 0 {
		return nil, ErrEmptySheet
	}

	columns := headerNames(records[0], width)
	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		rows = append(rows, record)
	}
	return table.New(name, columns, rows)
}

// headerNames trims header cells, names blank ones "Column N" and makes
// duplicates unique with a ".N" suffix.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]struct{}, width)
	for i := range names {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Column " + strconv.Itoa(i+1)
		}
		candidate := name
		for n := 1; ; n++ {
			if _, ok := seen[candidate]; !ok {
				break
			}
			candidate = name + "." + strconv.Itoa(n)
		}
		seen[candidate] = struct{}{}
		names[i] = candidate
	}
	return names
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
