package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"iarray/internal/ishape"
)

func tempDSN(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return "sqlite://" + filepath.Join(dir, "catalog.db")
}

func TestRegisterListForget(t *testing.T) {
	dsn := tempDSN(t)
	ctx := context.Background()

	id, err := Register(ctx, dsn, "file:///tmp/a.iarr", []int{10, 20}, []int{5, 20}, []int{5, 4}, ishape.Float64)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == "" {
		t.Fatal("Register returned empty id")
	}

	records, err := List(ctx, dsn)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List returned %d records, want 1", len(records))
	}
	got := records[0]
	if got.ID != id || got.Path != "file:///tmp/a.iarr" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Shape) != 2 || got.Shape[0] != 10 || got.Shape[1] != 20 {
		t.Fatalf("shape round-trip failed: %v", got.Shape)
	}

	if err := Forget(ctx, dsn, id); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	records, err = List(ctx, dsn)
	if err != nil {
		t.Fatalf("List after forget: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("List after forget returned %d records, want 0", len(records))
	}
}

func TestForgetUnknownIDIsNotError(t *testing.T) {
	dsn := tempDSN(t)
	if err := Forget(context.Background(), dsn, "does-not-exist"); err != nil {
		t.Fatalf("Forget unknown id: %v", err)
	}
}

func TestUnrecognizedDSNScheme(t *testing.T) {
	if _, err := List(context.Background(), "mongodb://localhost/x"); err == nil {
		t.Fatal("expected an error for an unrecognized DSN scheme")
	}
}
