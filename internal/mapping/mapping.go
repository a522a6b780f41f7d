// Package mapping holds the ordered column-to-path table that drives record
// conversion in both directions.
package mapping

import (
	"errors"
	"fmt"
	"strings"

	"topicetl/internal/pathmap"
)

// FieldMapping binds one output column to a location inside a message.
type FieldMapping struct {
	Column   string
	Path     string
	Default  *string
	Required bool
	Type     pathmap.Hint
}

// Entry is a FieldMapping with its path already parsed.
type Entry struct {
	FieldMapping
	Parsed pathmap.Path
}

// Table is an ordered, immutable list of entries with unique column names.
// It is safe to share between goroutines.
type Table struct {
	entries []Entry
	index   map[string]int
}

// ErrEmptyTable is returned by NewTable when no mappings are given.
var ErrEmptyTable = errors.New("mapping table has no columns")

// DuplicateColumnError reports a column name used twice.
type DuplicateColumnError struct {
	Column string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("duplicate column %q", e.Column)
}

// NewTable validates fms and returns the table. Paths are parsed here so a
// broken expression is reported at load time rather than per message.
func NewTable(fms []FieldMapping) (*Table, error) {
	if len(fms) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{
		entries: make([]Entry, 0, len(fms)),
		index:   make(map[string]int, len(fms)),
	}
	for i, fm := range fms {
		fm.Column = strings.TrimSpace(fm.Column)
		if fm.Column == "" {
			return nil, fmt.Errorf("columns[%d]: empty column name", i)
		}
		if _, dup := t.index[fm.Column]; dup {
			return nil, &DuplicateColumnError{Column: fm.Column}
		}
		p, err := pathmap.Parse(fm.Path)
		if err != nil {
			return nil, fmt.Errorf("columns[%d] %q: %w", i, fm.Column, err)
		}
		h, err := pathmap.ParseHint(string(fm.Type))
		if err != nil {
			return nil, fmt.Errorf("columns[%d] %q: %w", i, fm.Column, err)
		}
		fm.Type = h
		if fm.Default != nil {
			d := *fm.Default
			fm.Default = &d
		}
		t.index[fm.Column] = len(t.entries)
		t.entries = append(t.entries, Entry{FieldMapping: fm, Parsed: p})
	}
	return t, nil
}

// MustTable is like NewTable but panics on error.
func MustTable(fms ...FieldMapping) *Table {
	t, err := NewTable(fms)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of columns.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the entries in column order. The slice must not be modified.
func (t *Table) Entries() []Entry { return t.entries }

// Columns returns a fresh copy of the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Column
	}
	return out
}

// Lookup returns the entry for column.
func (t *Table) Lookup(column string) (Entry, bool) {
	i, ok := t.index[column]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Ptr returns a pointer to s; handy for FieldMapping.Default literals.
func Ptr(s string) *string { return &s }
