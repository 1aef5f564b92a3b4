package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/idilsaglam/tada/internal/model"
)

func TestPanelStringAligns(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	out := PanelString([]string{"[ ] a", "longer line"})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines: %q", lines)
	}
	if lines[0] != "+-------------+" {
		t.Errorf("top border: %q", lines[0])
	}
	if lines[1] != "| [ ] a       |" {
		t.Errorf("padded row: %q", lines[1])
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(1, 2, 10); got != "█████░░░░░  50%" {
		t.Errorf("got %q", got)
	}
	if got := ProgressBar(0, 0, 1); got != "░░░░░   0%" {
		t.Errorf("empty: got %q", got)
	}
}

func TestWeekStripStartOfWeek(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	date := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC) // Wednesday
	todos := model.TodoMap{"2026-10-12": {{ID: "x", Title: "t"}}}

	sunday := WeekStrip(model.Settings{StartOfWeek: 0}, date, todos)
	if !strings.HasPrefix(sunday, "Su 11") {
		t.Errorf("sunday start: %q", sunday)
	}
	monday := WeekStrip(model.Settings{StartOfWeek: 1}, date, todos)
	if !strings.HasPrefix(monday, "Mo 12•") {
		t.Errorf("monday start: %q", monday)
	}
}

func TestTodoLines(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	lines := TodoLines([]model.Todo{
		{Title: "Buy milk"},
		{Title: "Call mom", Completed: true, Description: "sunday\nevening"},
	})
	want := []string{" 1. [ ] Buy milk", " 2. [x] Call mom", "      sunday …"}
	if len(lines) != len(want) {
		t.Fatalf("lines: %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestGroupedTodoLinesKeepIndexes(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	lines := GroupedTodoLines([]model.Todo{
		{Title: "a", Completed: true},
		{Title: "b"},
	})
	want := []string{"Pending", " 2. [ ] b", "", "Done", " 1. [x] a"}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("got %q", lines)
	}
}
