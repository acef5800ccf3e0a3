package results

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, "job-1", json.RawMessage(`{"chart":{}}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != `{"chart":{}}` {
			t.Errorf("Get() = %s", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("save overwrites", func(t *testing.T) {
		s := newStore(t)
		s.Save(ctx, "job-1", json.RawMessage(`{"v":1}`))
		s.Save(ctx, "job-1", json.RawMessage(`{"v":2}`))
		got, _ := s.Get(ctx, "job-1")
		if string(got) != `{"v":2}` {
			t.Errorf("Get() = %s", got)
		}
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, "job-1", nil); err == nil {
			t.Error("Save(nil) should fail")
		}
	})
}

func TestMemory(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s := NewMemory(time.Hour, 0)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(20*time.Millisecond, 0)
	s.Save(ctx, "job-1", json.RawMessage(`{}`))

	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after retention error = %v, want ErrNotFound", err)
	}
	if n, _ := s.Sweep(ctx); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
}

func TestSQLite(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "results.db"), time.Hour)
		if err != nil {
			t.Fatalf("OpenSQLite() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLite_Retention(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := OpenSQLite(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Save(ctx, "old", json.RawMessage(`{"v":"old"}`))
	now = now.Add(90 * time.Minute)
	s.Save(ctx, "new", json.RawMessage(`{"v":"new"}`))

	if _, err := s.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(old) error = %v, want ErrNotFound", err)
	}
	n, err := s.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep() = %d, %v; want 1", n, err)
	}
	if _, err := s.Get(ctx, "new"); err != nil {
		t.Errorf("Get(new) error = %v", err)
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := OpenSQLite(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	s.Save(ctx, "job-1", json.RawMessage(`{"v":1}`))
	s.Close()

	s, err = OpenSQLite(ctx, path, time.Hour)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "job-1")
	if err != nil || string(got) != `{"v":1}` {
		t.Errorf("Get() after reopen = %s, %v", got, err)
	}
}
