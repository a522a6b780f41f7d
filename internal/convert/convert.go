// Package convert turns structured messages into flat rows and back, driven
// by a mapping.Table.
package convert

import (
	"fmt"

	"topicetl/internal/mapping"
	"topicetl/internal/value"
)

// Cell is one column value of a row.
type Cell struct {
	Column string
	Value  string
}

// Row is an ordered list of cells. Rows produced by ToRow always follow the
// table's column order.
type Row []Cell

// Values returns the cell texts in row order.
func (r Row) Values() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Value
	}
	return out
}

// Get returns the value of column.
func (r Row) Get(column string) (string, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

// RowOf zips columns and values into a Row. Extra values are dropped and
// missing ones are left out.
func RowOf(columns, values []string) Row {
	n := len(columns)
	if len(values) < n {
		n = len(values)
	}
	r := make(Row, n)
	for i := 0; i < n; i++ {
		r[i] = Cell{Column: columns[i], Value: values[i]}
	}
	return r
}

// MissingRequiredFieldError is returned by ToRow when a required column has
// no value in the message and no default.
type MissingRequiredFieldError struct {
	Column string
	Path   string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("required column %q: path %q not found in message", e.Column, e.Path)
}

// ToRow converts msg into a row with exactly one cell per table column, in
// table order. An absent value takes the column default when set, fails
// with *MissingRequiredFieldError when the column is required, and is empty
// text otherwise. A nil msg behaves like an empty message.
func ToRow(msg *value.Value, t *mapping.Table) (Row, error) {
	entries := t.Entries()
	row := make(Row, len(entries))
	for i, e := range entries {
		text, ok := e.Parsed.Resolve(msg)
		if !ok {
			switch {
			case e.Default != nil:
				text = *e.Default
			case e.Required:
				return nil, &MissingRequiredFieldError{Column: e.Column, Path: e.Path}
			}
		}
		row[i] = Cell{Column: e.Column, Value: text}
	}
	return row, nil
}

// ToMessage builds a message from row. Cells are matched to table columns by
// name, so row order does not matter; cells for unknown columns are ignored.
// Empty text is injected like any other value, never skipped. Injection
// follows table order so the resulting map keys are deterministic.
func ToMessage(row Row, t *mapping.Table) *value.Value {
	byName := make(map[string]string, len(row))
	for _, c := range row {
		byName[c.Column] = c.Value
	}
	root := value.NewMap()
	for _, e := range t.Entries() {
		text, ok := byName[e.Column]
		if !ok {
			continue
		}
		root = e.Parsed.Inject(root, text, e.Type)
	}
	return root
}
