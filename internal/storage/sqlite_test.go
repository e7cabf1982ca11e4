package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/strata/internal/oid"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	id := oid.FromSemantic("strata/test/v1", "record")
	if err := s.Put(ctx, id, []byte(`{"@type":"Plan"}`)); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	data, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(data) != `{"@type":"Plan"}` {
		t.Errorf("Get() = %q", data)
	}
}

func TestPut_Overwrites(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	id := oid.Random()
	if err := s.Put(ctx, id, []byte("first")); err != nil {
		t.Fatalf("first Put() failed: %v", err)
	}
	if err := s.Put(ctx, id, []byte("second")); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	data, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Get() after overwrite = %q, want %q", data, "second")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTemp(t)

	_, err := s.Get(context.Background(), oid.Random())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() for absent record = %v, want ErrNotFound", err)
	}
}

func TestHas(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	id := oid.Random()
	ok, err := s.Has(ctx, id)
	if err != nil {
		t.Fatalf("Has() failed: %v", err)
	}
	if ok {
		t.Error("Has() before Put should be false")
	}

	if err := s.Put(ctx, id, []byte("x")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	ok, err = s.Has(ctx, id)
	if err != nil {
		t.Fatalf("Has() failed: %v", err)
	}
	if !ok {
		t.Error("Has() after Put should be true")
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()
	id := oid.Random()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.Put(ctx, id, []byte("durable")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	data, err := s2.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if string(data) != "durable" {
		t.Errorf("Get() after reopen = %q", data)
	}
}

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
