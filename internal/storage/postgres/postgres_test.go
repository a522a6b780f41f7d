package postgres

import (
	"context"
	"errors"
	"testing"

	"topicetl/internal/storage"
)

func TestCreateTableSQL(t *testing.T) {
	got := CreateTableSQL("public.orders", []string{"id", "Name"})
	const want = `CREATE TABLE IF NOT EXISTS "public"."orders" ("id" TEXT, "Name" TEXT)`
	if got != want {
		t.Fatalf("ddl = %q; want %q", got, want)
	}
}

func TestTableIdent(t *testing.T) {
	id := tableIdent("public.orders")
	if len(id) != 2 || id[0] != "public" || id[1] != "orders" {
		t.Fatalf("tableIdent = %v", id)
	}
}

func TestFactory_UsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return nil, nil, errors.New("no database in tests")
	}
	_, err := storage.New(context.Background(), storage.Config{
		Kind: "postgres", DSN: "postgres://x", Table: "t", Columns: []string{"a"},
	})
	if err == nil {
		t.Fatalf("expected hook error")
	}
	if gotCfg.DSN != "postgres://x" || gotCfg.Table != "t" {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
}
