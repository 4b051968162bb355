package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestPutGetDelete(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetValue(ctx, "sc_1", "dicer_token"); err != nil || ok {
		t.Fatalf("GetValue on empty store = ok %v, err %v; want absent", ok, err)
	}

	if err := st.PutValue(ctx, "sc_1", "dicer_token", "T1", time.Time{}); err != nil {
		t.Fatalf("PutValue: %v", err)
	}
	got, ok, err := st.GetValue(ctx, "sc_1", "dicer_token")
	if err != nil || !ok || got != "T1" {
		t.Fatalf("GetValue = %q, %v, %v; want T1", got, ok, err)
	}

	// Replace.
	if err := st.PutValue(ctx, "sc_1", "dicer_token", "T2", time.Time{}); err != nil {
		t.Fatalf("PutValue replace: %v", err)
	}
	if got, _, _ := st.GetValue(ctx, "sc_1", "dicer_token"); got != "T2" {
		t.Errorf("after replace got %q, want T2", got)
	}

	// Scopes are isolated.
	if _, ok, _ := st.GetValue(ctx, "sc_2", "dicer_token"); ok {
		t.Error("value leaked across scopes")
	}

	if err := st.DeleteValue(ctx, "sc_1", "dicer_token"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if _, ok, _ := st.GetValue(ctx, "sc_1", "dicer_token"); ok {
		t.Error("value still present after delete")
	}
	// Deleting again is fine.
	if err := st.DeleteValue(ctx, "sc_1", "dicer_token"); err != nil {
		t.Errorf("second DeleteValue: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	if err := st.PutValue(ctx, "sc_1", "dicer_token", "old", past); err != nil {
		t.Fatal(err)
	}
	if err := st.PutValue(ctx, "sc_1", "dicer_email", "a@x.com", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := st.GetValue(ctx, "sc_1", "dicer_token"); ok {
		t.Error("expired value should be reported absent")
	}

	n, err := st.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired removed %d rows, want 1", n)
	}
	if _, ok, _ := st.GetValue(ctx, "sc_1", "dicer_email"); !ok {
		t.Error("unexpired value should survive cleanup")
	}
}

func TestDeleteScope(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	st.PutValue(ctx, "sc_1", "a", "1", time.Time{})
	st.PutValue(ctx, "sc_1", "b", "2", time.Time{})
	st.PutValue(ctx, "sc_2", "a", "3", time.Time{})

	n, err := st.DeleteScope(ctx, "sc_1")
	if err != nil {
		t.Fatalf("DeleteScope: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteScope removed %d rows, want 2", n)
	}
	if _, ok, _ := st.GetValue(ctx, "sc_2", "a"); !ok {
		t.Error("other scope should be untouched")
	}
}
