package persist

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/idilsaglam/tada/internal/store"
	"github.com/idilsaglam/tada/internal/store/memstore"
)

func TestClearCalendarData(t *testing.T) {
	backend := memstore.Seed(map[string]string{
		"todos":            `{}`,
		"calendarSettings": `{"startOfWeek":1}`,
		"unrelated":        `"keep"`,
		"todos.backup":     `{}`,
	})
	hub := newHub(t, backend)
	ClearCalendarData(hub.Open(), nil)

	got := backend.Snapshot()
	if len(got) != 2 || got["unrelated"] != `"keep"` || got["todos.backup"] != `{}` {
		t.Errorf("remaining keys: %v", got)
	}
}

func TestClearCalendarDataFailure(t *testing.T) {
	var buf bytes.Buffer
	backend := memstore.Seed(map[string]string{"todos": `{}`})
	backend.FailWrites(true)
	hub := newHub(t, backend)

	ClearCalendarData(hub.Open(), newLogger(&buf))
	if !strings.Contains(buf.String(), "error clearing storage") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestAvailability(t *testing.T) {
	backend := memstore.New()
	hub := newHub(t, backend)
	m := hub.Open()

	a := NewAvailability(m)
	if a.Status() || a.Checked() {
		t.Error("status before first check should be unavailable")
	}
	if !a.Check() || !a.Status() || !a.Checked() {
		t.Error("healthy storage reported unavailable")
	}
	if _, ok := backend.Snapshot()[testKey]; ok {
		t.Error("test key left behind")
	}

	backend.FailWrites(true)
	if IsAvailable(m) {
		t.Error("failing storage reported available")
	}
	if a.Check() || a.Status() {
		t.Error("status not updated after failure")
	}
}

func TestAvailabilityFailureLogsStep(t *testing.T) {
	tests := []struct {
		name     string
		fail     func(*memstore.Store)
		wantStep string
	}{
		{"write rejected", func(s *memstore.Store) { s.FailWrites(true) }, "step=write"},
		{"storage disabled", func(s *memstore.Store) { s.FailReads(true) }, "step=write"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			backend := memstore.New()
			hub := newHub(t, backend)
			tt.fail(backend)
			if IsAvailable(hub.Open(), WithLogger(newLogger(&buf))) {
				t.Fatal("failing storage reported available")
			}
			out := buf.String()
			if !strings.Contains(out, "WARN") || !strings.Contains(out, tt.wantStep) || !strings.Contains(out, "err=") {
				t.Errorf("log: %q", out)
			}
		})
	}
}

// removeFails accepts writes and rejects removals.
type removeFails struct{ store.Medium }

func (removeFails) Remove(string) error { return errors.New("read-only") }

func TestAvailabilityRemoveFailure(t *testing.T) {
	var buf bytes.Buffer
	hub := newHub(t, memstore.New())
	a := NewAvailability(removeFails{hub.Open()}, WithLogger(newLogger(&buf)))
	if a.Check() {
		t.Fatal("check passed despite failing remove")
	}
	if !strings.Contains(buf.String(), "step=remove") || !strings.Contains(buf.String(), "read-only") {
		t.Errorf("log: %q", buf.String())
	}
}
