package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/sheetsense/sheetsense/internal/table"
)

// snapshotRow is the parquet layout of a stored table. Column names live in
// the catalog, so one fixed schema fits every sheet.
type snapshotRow struct {
	RowIndex int64    `parquet:"row_index"`
	Cells    []string `parquet:"cells,list"`
}

const snapshotContentType = "application/vnd.apache.parquet"

// snapshotSQL reads a snapshot registered as the "snapshot" view.
const snapshotSQL = `SELECT row_index, cells FROM snapshot ORDER BY row_index`

func encodeSnapshot(t *table.Table) ([]byte, error) {
	rows := make([]snapshotRow, t.Len())
	for i := range rows {
		rows[i] = snapshotRow{RowIndex: int64(i), Cells: t.Row(i)}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[snapshotRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) ([][]string, error) {
	reader := parquet.NewGenericReader[snapshotRow](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]snapshotRow, reader.NumRows())
	if len(rows) > 0 {
		n, err := reader.Read(rows)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		rows = rows[:n]
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowIndex < rows[j].RowIndex })

	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = row.Cells
	}
	return out, nil
}

// cellsFromValue converts a DuckDB LIST(VARCHAR) value.
func cellsFromValue(value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return typed, nil
	case []any:
		cells := make([]string, len(typed))
		for i, item := range typed {
			switch cell := item.(type) {
			case nil:
			case string:
				cells[i] = cell
			case []byte:
				cells[i] = string(cell)
			default:
				cells[i] = fmt.Sprint(cell)
			}
		}
		return cells, nil
	default:
		return nil, fmt.Errorf("unexpected cells value %T", value)
	}
}
