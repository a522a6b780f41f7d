package file

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTagger_Name(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 7, 21, 4, 9, 0, time.Local)
	tg := Tagger{Now: func() time.Time { return at }}

	if got := tg.Name("orders"); got != "orders_20240307_210409.csv" {
		t.Fatalf("Name = %q", got)
	}
	if got := tg.Path("out", "orders"); got != filepath.Join("out", "orders_20240307_210409.csv") {
		t.Fatalf("Path = %q", got)
	}
	tg.Ext = ".tsv"
	if got := tg.Name("a/b"); got != "a_b_20240307_210409.tsv" {
		t.Fatalf("Name with ext = %q", got)
	}
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"orders":      "orders",
		"payments.v2": "payments.v2",
		"a b/c":       "a_b_c",
		"":            "topic",
		"..":          "topic",
	}
	for in, want := range cases {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q; want %q", in, got, want)
		}
	}
}
