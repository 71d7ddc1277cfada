package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v1" {
		t.Fatalf("expected v1, got %q", value)
	}
	if err := db.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, _ = db.Get([]byte("k"))
	if string(value) != "v2" {
		t.Fatalf("expected v2, got %q", value)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func exerciseBatch(t *testing.T, db Database) {
	t.Helper()
	if err := db.Put([]byte("stale"), []byte("old")); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch := db.NewBatch()
	if err := batch.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("batch put: %v", err)
	}
	if err := batch.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("batch put: %v", err)
	}
	if err := batch.Delete([]byte("stale")); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if batch.Len() != 3 {
		t.Fatalf("expected 3 buffered operations, got %d", batch.Len())
	}
	if _, err := db.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("batched write visible before Write: %v", err)
	}
	if err := batch.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}
	for key, want := range map[string]string{"a": "1", "b": "2"} {
		value, err := db.Get([]byte(key))
		if err != nil || string(value) != want {
			t.Fatalf("%s: got %q, %v", key, value, err)
		}
	}
	if _, err := db.Get([]byte("stale")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected batched delete to apply, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
	exerciseBatch(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("abc")
	if err := db.Put([]byte("k"), buf); err != nil {
		t.Fatalf("put: %v", err)
	}
	buf[0] = 'x'
	value, _ := db.Get([]byte("k"))
	if string(value) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q", value)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ldb"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
	exerciseBatch(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
	exerciseBatch(t, db)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", ""); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := Open("leveldb", ""); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
