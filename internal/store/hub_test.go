package store_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tada/internal/store"
	"github.com/idilsaglam/tada/internal/store/memstore"
)

func TestNotifiesOtherContextsOnly(t *testing.T) {
	hub := store.NewHub(memstore.New())
	defer hub.Close()

	a, b, c := hub.Open(), hub.Open(), hub.Open()
	var gotA, gotB, gotC []store.Event
	a.Subscribe(func(ev store.Event) { gotA = append(gotA, ev) })
	b.Subscribe(func(ev store.Event) { gotB = append(gotB, ev) })
	unsubC := c.Subscribe(func(ev store.Event) { gotC = append(gotC, ev) })

	if err := a.Set("k", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(gotA) != 0 {
		t.Errorf("writer notified of its own write: %v", gotA)
	}
	if len(gotB) != 1 || gotB[0].Key != "k" || *gotB[0].NewValue != "1" || gotB[0].OldValue != nil {
		t.Errorf("b events: %+v", gotB)
	}

	unsubC()
	unsubC()
	if err := a.Set("k", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(gotC) != 1 {
		t.Errorf("unsubscribed context still notified: %d events", len(gotC))
	}
	if ev := gotB[1]; *ev.OldValue != "1" || *ev.NewValue != "2" {
		t.Errorf("second event: old=%v new=%v", ev.OldValue, ev.NewValue)
	}

	if err := b.Remove("k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if last := gotA[len(gotA)-1]; !last.Removed() || *last.OldValue != "2" {
		t.Errorf("remove event: %+v", last)
	}
}

func TestEventOrder(t *testing.T) {
	hub := store.NewHub(memstore.New())
	defer hub.Close()
	w, r := hub.Open(), hub.Open()

	var got []string
	r.Subscribe(func(ev store.Event) { got = append(got, *ev.NewValue) })
	for _, v := range []string{"1", "2", "3"} {
		if err := w.Set("k", v); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Errorf("order: %v", got)
	}
}

func TestFailedWriteIsSilent(t *testing.T) {
	backend := memstore.New()
	hub := store.NewHub(backend)
	defer hub.Close()
	w, r := hub.Open(), hub.Open()

	notified := false
	r.Subscribe(func(store.Event) { notified = true })
	backend.FailWrites(true)
	if err := w.Set("k", "v"); err == nil {
		t.Fatal("expected write error")
	}
	if notified {
		t.Error("failed write was announced")
	}
}

func TestClosedContext(t *testing.T) {
	hub := store.NewHub(memstore.New())
	defer hub.Close()
	c := hub.Open()
	other := hub.Open()

	notified := false
	c.Subscribe(func(store.Event) { notified = true })
	c.Close()

	if err := other.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	if notified {
		t.Error("closed context was notified")
	}
	if _, _, err := c.Get("k"); err != store.ErrClosed {
		t.Errorf("get on closed context: %v", err)
	}
}

// brokenWatcher reports one transient error, then gives up.
type brokenWatcher struct {
	*memstore.Store
	err error
}

func (b brokenWatcher) Watch(stop <-chan struct{}, emit func(store.Event), warn func(error)) error {
	warn(errors.New("event queue overflow"))
	return b.err
}

func TestWatchFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	hub := store.NewHub(brokenWatcher{memstore.New(), errors.New("too many open files")}, store.WithLogger(logger))
	hub.Close() // waits for the watcher goroutine

	out := buf.String()
	for _, want := range []string{"WARN", "event queue overflow", "will not be seen", "too many open files"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %q", want, out)
		}
	}
}
