package mapping

import (
	"errors"
	"testing"

	"topicetl/internal/pathmap"
)

func TestNewTable_OrderAndLookup(t *testing.T) {
	tbl, err := NewTable([]FieldMapping{
		{Column: "id", Path: "user.id", Required: true},
		{Column: "name", Path: "user.name", Default: Ptr("unknown")},
		{Column: "sku", Path: "items[0].sku", Type: pathmap.HintString},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	cols := tbl.Columns()
	if len(cols) != 3 || cols[0] != "id" || cols[1] != "name" || cols[2] != "sku" {
		t.Fatalf("Columns = %v", cols)
	}
	e, ok := tbl.Lookup("name")
	if !ok || e.Default == nil || *e.Default != "unknown" {
		t.Fatalf("Lookup(name) = %+v, %v", e, ok)
	}
	if e.Type != pathmap.HintAuto {
		t.Fatalf("default hint = %q; want auto", e.Type)
	}
	if got := len(tbl.Entries()[2].Parsed.Steps()); got != 3 {
		t.Fatalf("parsed steps = %d; want 3", got)
	}
	if _, ok := tbl.Lookup("missing"); ok {
		t.Fatalf("Lookup(missing) reported present")
	}
}

func TestNewTable_Rejects(t *testing.T) {
	if _, err := NewTable(nil); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("empty table err = %v; want ErrEmptyTable", err)
	}

	_, err := NewTable([]FieldMapping{{Column: "a", Path: "x"}, {Column: "a", Path: "y"}})
	var dup *DuplicateColumnError
	if !errors.As(err, &dup) || dup.Column != "a" {
		t.Fatalf("duplicate err = %v", err)
	}

	_, err = NewTable([]FieldMapping{{Column: "a", Path: "x..y"}})
	var se *pathmap.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("bad path err = %v; want *pathmap.SyntaxError", err)
	}

	if _, err := NewTable([]FieldMapping{{Column: " ", Path: "x"}}); err == nil {
		t.Fatalf("blank column accepted")
	}
	if _, err := NewTable([]FieldMapping{{Column: "a", Path: "x", Type: "money"}}); err == nil {
		t.Fatalf("unknown hint accepted")
	}
}

func TestNewTable_CopiesDefaults(t *testing.T) {
	d := "orig"
	tbl := MustTable(FieldMapping{Column: "c", Path: "p", Default: &d})
	d = "changed"
	e, _ := tbl.Lookup("c")
	if *e.Default != "orig" {
		t.Fatalf("table default mutated through caller pointer: %q", *e.Default)
	}
}
