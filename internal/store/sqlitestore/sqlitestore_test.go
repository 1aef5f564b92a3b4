package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/idilsaglam/tada/internal/store"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tada.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSetGetRemove(t *testing.T) {
	s, path := openTestStore(t)

	if _, ok, err := s.Get("todos"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set("todos", `{}`); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("todos", `{"x":[]}`); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Get("todos")
	if err != nil || !ok || v != `{"x":[]}` {
		t.Errorf("get: %q %v %v", v, ok, err)
	}
	if err := reopened.Remove("todos"); err != nil {
		t.Fatal(err)
	}
	if err := reopened.Remove("todos"); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if _, ok, _ := reopened.Get("todos"); ok {
		t.Error("key survived remove")
	}
}

func TestWatchSeesOtherConnection(t *testing.T) {
	PollInterval = 20 * time.Millisecond
	t.Cleanup(func() { PollInterval = 500 * time.Millisecond })

	mine, path := openTestStore(t)
	theirs, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer theirs.Close()

	hub := store.NewHub(mine)
	defer hub.Close()
	c := hub.Open()
	events := make(chan store.Event, 8)
	c.Subscribe(func(ev store.Event) { events <- ev })

	// a local write must not come back as an event
	if err := c.Set("mine", "1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := theirs.Set("todos", `{"a":[]}`); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Key != "todos" || ev.NewValue == nil || *ev.NewValue != `{"a":[]}` {
			t.Errorf("event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event for write from another connection")
	}
}

func TestOwnWritesAreNotEchoed(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("gone"); err != nil {
		t.Fatal(err)
	}
	events, err := s.diff(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("diff after own writes: %+v", events)
	}
}
