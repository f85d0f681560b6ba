// Package table holds the in-memory spreadsheet representation that every
// question is answered against.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
)

var ErrDuplicateColumn = errors.New("duplicate column name")

// Table is an ordered set of named columns with a uniform row count. Cells
// keep their displayed text; numeric meaning is decided by the operation
// that reads them. A Table is never mutated after New returns.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]string
}

// New copies columns and rows. Short rows are padded with empty cells; rows
// wider than the header are rejected.
func New(name string, columns []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, column := range columns {
		if column == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, ok := index[column]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, column)
		}
		index[column] = i
	}

	copied := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, table has %d columns", i, len(row), len(columns))
		}
		cells := make([]string, len(columns))
		copy(cells, row)
		copied[i] = cells
	}

	return &Table{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) ColumnIndex(column string) (int, bool) {
	i, ok := t.index[column]
	return i, ok
}

func (t *Table) HasColumn(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Cell returns the value at row and column index. Callers validate bounds.
func (t *Table) Cell(row, column int) string {
	return t.rows[row][column]
}

// Row returns a copy of one row.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// Lookup returns a function that resolves column names against row i.
func (t *Table) Lookup(i int) func(column string) (string, bool) {
	row := t.rows[i]
	return func(column string) (string, bool) {
		idx, ok := t.index[column]
		if !ok {
			return "", false
		}
		return row[idx], true
	}
}

// Samples returns up to n distinct non-empty values per column in first
// appearance order.
func (t *Table) Samples(n int) map[string][]string {
	out := make(map[string][]string, len(t.columns))
	if n <= 0 {
		return out
	}
	for c, column := range t.columns {
		seen := make(map[string]struct{}, n)
		values := make([]string, 0, n)
		for _, row := range t.rows {
			value := strings.TrimSpace(row[c])
			if value == "" {
				continue
			}
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			values = append(values, value)
			if len(values) == n {
				break
			}
		}
		out[column] = values
	}
	return out
}

// Head returns a table with the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n > len(t.rows) {
		n = len(t.rows)
	}
	return t.withRows(t.rows[:n])
}

// Select returns a table with the rows at the given indexes, in order.
func (t *Table) Select(indexes []int) *Table {
	rows := make([][]string, 0, len(indexes))
	for _, i := range indexes {
		rows = append(rows, t.rows[i])
	}
	return t.withRows(rows)
}

// WithColumn returns a new table with an extra column appended. Values must
// have one entry per row.
func (t *Table) WithColumn(column string, values []string) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", column, len(values), len(t.rows))
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rows[i] = append(append(make([]string, 0, len(row)+1), row...), values[i])
	}
	return New(t.name, append(t.Columns(), column), rows)
}

// CSV renders the header and every row as CSV text.
func (t *Table) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.columns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.rows); err != nil {
		return "", fmt.Errorf("write csv rows: %w", err)
	}
	return buf.String(), nil
}

// Records returns the rows as column-keyed maps for JSON responses.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.rows))
	for i, row := range t.rows {
		record := make(map[string]string, len(t.columns))
		for c, column := range t.columns {
			record[column] = row[c]
		}
		out[i] = record
	}
	return out
}

func (t *Table) withRows(rows [][]string) *Table {
	return &Table{name: t.name, columns: t.columns, index: t.index, rows: rows}
}
