package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Table is a column-named numeric table. Every row has one value per column.
type Table struct {
	Columns []string    `json:"columns" msgpack:"columns"`
	Rows    [][]float64 `json:"rows" msgpack:"rows"`
}

// NewTable returns an empty table with the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string{}, columns...), Rows: [][]float64{}}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Append adds a row. It panics if the row width does not match the columns.
func (t *Table) Append(row []float64) {
	if len(row) != len(t.Columns) {
		panic(fmt.Sprintf("core: row has %d values, table has %d columns", len(row), len(t.Columns)))
	}
	t.Rows = append(t.Rows, row)
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Column returns a copy of one column, or nil if it does not exist.
func (t *Table) Column(name string) []float64 {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Row returns row i keyed by column name.
func (t *Table) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(t.Columns))
	for j, name := range t.Columns {
		row[name] = t.Rows[i][j]
	}
	return row
}

// Dedup removes rows equal to an earlier row, keeping the first occurrence,
// and returns the number of rows removed.
func (t *Table) Dedup() int {
	seen := make(map[string]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}
	removed := len(t.Rows) - len(kept)
	t.Rows = kept
	return removed
}

// rowKey encodes a row so that equal rows share a key. Negative zero is
// folded into zero.
func rowKey(row []float64) string {
	buf := make([]byte, 8*len(row))
	for i, v := range row {
		if v == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return string(buf)
}

// Concat stacks tables vertically. The result has the sorted union of all
// columns; a column missing from one table is filled with 0 for its rows.
func Concat(tables ...*Table) *Table {
	var columns []string
	for _, t := range tables {
		for _, c := range t.Columns {
			if !slices.Contains(columns, c) {
				columns = append(columns, c)
			}
		}
	}
	sort.Strings(columns)

	out := NewTable(columns)
	for _, t := range tables {
		mapping := make([]int, len(t.Columns))
		for j, c := range t.Columns {
			mapping[j] = slices.Index(columns, c)
		}
		for _, row := range t.Rows {
			merged := make([]float64, len(columns))
			for j, v := range row {
				merged[mapping[j]] = v
			}
			out.Append(merged)
		}
	}
	return out
}
