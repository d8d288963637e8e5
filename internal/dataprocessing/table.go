package dataprocessing

import "strings"

// Cell is a single table value. Present is false for a missing value, which is
// distinct from a present empty string until the table is normalized.
type Cell struct {
	Text    string
	Present bool
}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{Text: s, Present: true}
}

// Missing returns a cell with no value.
func Missing() Cell {
	return Cell{}
}

// IsBlank reports whether the cell is missing or an empty string.
func (c Cell) IsBlank() bool {
	return !c.Present || c.Text == ""
}

// Table is an ordered set of rows sharing one ordered column set.
// Stages never modify a table in place; they build a new one.
type Table struct {
	columns []string
	rows    [][]Cell
}

// NewTable builds a table from a header and rows. Rows shorter than the
// header are padded with missing cells and longer rows are truncated.
func NewTable(columns []string, rows [][]Cell) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		rows:    make([][]Cell, 0, len(rows)),
	}
	for _, row := range rows {
		t.rows = append(t.rows, fitRow(row, len(columns)))
	}
	return t
}

func fitRow(row []Cell, width int) []Cell {
	out := make([]Cell, width)
	copy(out, row)
	return out
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.columns)
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) []Cell {
	return append([]Cell(nil), t.rows[i]...)
}

// Cell returns the value at row i, column col.
func (t *Table) Cell(i, col int) Cell {
	return t.rows[i][col]
}

// HasColumn reports whether a column with exactly this name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.FindColumn(name)
	return ok
}

// FindColumn returns the index of the first column named exactly name.
func (t *Table) FindColumn(name string) (int, bool) {
	for i, c := range t.columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// FindColumnFold returns the index of the first column whose name equals
// name under Unicode case folding.
func (t *Table) FindColumnFold(name string) (int, bool) {
	for i, c := range t.columns {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return -1, false
}

// Value returns the named column's cell for row i, or a missing cell when the
// column does not exist.
func (t *Table) Value(i int, name string) Cell {
	col, ok := t.FindColumn(name)
	if !ok {
		return Missing()
	}
	return t.rows[i][col]
}

// ColumnValues returns a copy of one column.
func (t *Table) ColumnValues(col int) []Cell {
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[col]
	}
	return out
}

// Records returns the table as text rows, missing cells rendered as "".
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rec := make([]string, len(row))
		for j, c := range row {
			rec[j] = c.Text
		}
		out[i] = rec
	}
	return out
}

// selectRows returns a new table holding only the rows for which keep is true.
func (t *Table) selectRows(keep []bool) *Table {
	out := &Table{columns: t.Columns()}
	for i, row := range t.rows {
		if keep[i] {
			out.rows = append(out.rows, append([]Cell(nil), row...))
		}
	}
	return out
}

// selectColumns returns a new table with the given column indices, in order.
func (t *Table) selectColumns(idx []int) *Table {
	out := &Table{
		columns: make([]string, len(idx)),
		rows:    make([][]Cell, len(t.rows)),
	}
	for j, src := range idx {
		out.columns[j] = t.columns[src]
	}
	for i, row := range t.rows {
		nr := make([]Cell, len(idx))
		for j, src := range idx {
			nr[j] = row[src]
		}
		out.rows[i] = nr
	}
	return out
}

// withColumn returns a copy of the table where the named column holds the
// values produced by fill. The column is appended if it does not exist.
func (t *Table) withColumn(name string, fill func(i int, old Cell) Cell) *Table {
	col, ok := t.FindColumn(name)
	out := &Table{columns: t.Columns(), rows: make([][]Cell, len(t.rows))}
	if !ok {
		out.columns = append(out.columns, name)
		col = len(out.columns) - 1
	}
	for i, row := range t.rows {
		nr := make([]Cell, len(out.columns))
		copy(nr, row)
		nr[col] = fill(i, nr[col])
		out.rows[i] = nr
	}
	return out
}

// clone returns a deep copy of the table.
func (t *Table) clone() *Table {
	return NewTable(t.columns, t.rows)
}
