package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Frame is a small column-ordered string table. API payloads decode into
// frames, transforms rewrite them, and the loaders package moves them in and
// out of CSV files. All cells are strings; numeric transforms parse on use.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// NewFrame returns an empty frame with the given column order.
func NewFrame(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// FromRecords builds a frame from decoded JSON records. The column set is
// the union of keys across all records, sorted for a deterministic order.
// Missing keys become empty cells.
func FromRecords(records []map[string]any) *Frame {
	if len(records) == 0 {
		return &Frame{}
	}
	seen := map[string]bool{}
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	f := &Frame{Columns: columns, Rows: make([][]string, 0, len(records))}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := rec[col]; ok {
				row[i] = FormatValue(v)
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// FormatValue renders a decoded JSON value as a CSV cell. Floats print
// without exponent noise, nil prints empty.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// NumRows returns the number of data rows.
func (f *Frame) NumRows() int { return len(f.Rows) }

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return f == nil || len(f.Rows) == 0 }

// ColumnIndex returns the position of a column, or -1 when absent.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the column exists.
func (f *Frame) HasColumn(name string) bool { return f.ColumnIndex(name) >= 0 }

// Value returns the cell at (row, column), empty when the column is absent.
func (f *Frame) Value(row int, column string) string {
	i := f.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(f.Rows) {
		return ""
	}
	return f.Rows[row][i]
}

// SetValue writes the cell at (row, column). Absent columns are ignored.
func (f *Frame) SetValue(row int, column, value string) {
	i := f.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(f.Rows) {
		return
	}
	f.Rows[row][i] = value
}

// Float parses the cell at (row, column). ok is false for empty or
// non-numeric cells.
func (f *Frame) Float(row int, column string) (float64, bool) {
	s := strings.TrimSpace(f.Value(row, column))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// AddColumn appends a column filled with a constant value. Existing columns
// are overwritten in place instead.
func (f *Frame) AddColumn(name, fill string) {
	if i := f.ColumnIndex(name); i >= 0 {
		for r := range f.Rows {
			f.Rows[r][i] = fill
		}
		return
	}
	f.Columns = append(f.Columns, name)
	for r := range f.Rows {
		f.Rows[r] = append(f.Rows[r], fill)
	}
}

// AddComputedColumn appends a column whose cells are produced per row. The
// callback sees the row index; existing columns are overwritten in place.
func (f *Frame) AddComputedColumn(name string, fn func(row int) string) {
	f.AddColumn(name, "")
	i := f.ColumnIndex(name)
	for r := range f.Rows {
		f.Rows[r][i] = fn(r)
	}
}

// Select returns a new frame keeping only the named columns that exist, in
// the requested order.
func (f *Frame) Select(columns ...string) *Frame {
	keep := make([]int, 0, len(columns))
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		if i := f.ColumnIndex(c); i >= 0 {
			keep = append(keep, i)
			names = append(names, c)
		}
	}
	out := &Frame{Columns: names, Rows: make([][]string, 0, len(f.Rows))}
	for _, row := range f.Rows {
		nr := make([]string, len(keep))
		for j, i := range keep {
			nr[j] = row[i]
		}
		out.Rows = append(out.Rows, nr)
	}
	return out
}

// Rename maps old column names to new ones in place.
func (f *Frame) Rename(mapping map[string]string) {
	for i, c := range f.Columns {
		if n, ok := mapping[c]; ok {
			f.Columns[i] = n
		}
	}
}

// Filter returns a new frame keeping rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	out := &Frame{Columns: append([]string(nil), f.Columns...)}
	for i, row := range f.Rows {
		if keep(i) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Concat appends other's rows, aligning columns by name. Columns present
// only in other are added with empty cells for existing rows.
func (f *Frame) Concat(other *Frame) {
	if other.Empty() && len(other.Columns) == 0 {
		return
	}
	if len(f.Columns) == 0 {
		f.Columns = append([]string(nil), other.Columns...)
	}
	for _, c := range other.Columns {
		if !f.HasColumn(c) {
			f.AddColumn(c, "")
		}
	}
	idx := make([]int, len(f.Columns))
	for i, c := range f.Columns {
		idx[i] = other.ColumnIndex(c)
	}
	for _, row := range other.Rows {
		nr := make([]string, len(f.Columns))
		for i, j := range idx {
			if j >= 0 {
				nr[i] = row[j]
			}
		}
		f.Rows = append(f.Rows, nr)
	}
}

// DropDuplicates removes exact duplicate rows, keeping first occurrence.
func (f *Frame) DropDuplicates() {
	seen := make(map[string]bool, len(f.Rows))
	out := f.Rows[:0]
	for _, row := range f.Rows {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	f.Rows = out
}
