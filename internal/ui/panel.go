package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/tada/internal/model"
)

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Panel draws a framed box using the current theme.
func Panel(lines []string) {
	fmt.Fprint(stdout, PanelString(lines))
}

// PanelString is Panel without the write.
func PanelString(lines []string) string {
	t := Current()
	maxw := 0
	for _, ln := range lines {
		if w := lipgloss.Width(ln); w > maxw {
			maxw = w
		}
	}
	var b strings.Builder
	b.WriteString(t.CornerTL + strings.Repeat(t.H, maxw+2) + t.CornerTR + "\n")
	for _, ln := range lines {
		pad := strings.Repeat(" ", maxw-lipgloss.Width(ln))
		b.WriteString(t.V + " " + ln + pad + " " + t.V + "\n")
	}
	b.WriteString(t.CornerBL + strings.Repeat(t.H, maxw+2) + t.CornerBR + "\n")
	return b.String()
}

// WeekStrip renders the seven days around date, starting on the configured
// first weekday, with date highlighted.
func WeekStrip(s model.Settings, date time.Time, todos model.TodoMap) string {
	cells := make([]string, 0, 7)
	for _, d := range s.Week(date) {
		cell := fmt.Sprintf("%s %2d", d.Weekday().String()[:2], d.Day())
		if len(todos.Day(d)) > 0 {
			cell += "•"
		} else {
			cell += " "
		}
		if model.DateKey(d) == model.DateKey(date) {
			cell = C(Current().Today, cell)
		} else {
			cell = C(Current().Muted, cell)
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, " ")
}

// TodoLines renders one day's todos with 1-based indexes.
func TodoLines(todos []model.Todo) []string {
	if len(todos) == 0 {
		return []string{C(Current().Muted, "no todos")}
	}
	out := make([]string, 0, len(todos))
	for i, it := range todos {
		out = append(out, todoLine(i+1, it)...)
	}
	return out
}

// GroupedTodoLines splits todos into Pending and Done sections. Indexes stay
// those of the day's list so they can be passed to done or rm.
func GroupedTodoLines(todos []model.Todo) []string {
	t := Current()
	var pend, done []string
	for i, it := range todos {
		if it.Completed {
			done = append(done, todoLine(i+1, it)...)
		} else {
			pend = append(pend, todoLine(i+1, it)...)
		}
	}
	none := C(t.Muted, "(none)")
	if len(pend) == 0 {
		pend = []string{none}
	}
	if len(done) == 0 {
		done = []string{none}
	}
	lines := append([]string{C(t.Accent, "Pending")}, pend...)
	lines = append(lines, "", C(t.Accent, "Done"))
	return append(lines, done...)
}

func todoLine(index int, it model.Todo) []string {
	t := Current()
	box, color := t.BoxUnchecked, t.Muted
	if it.Completed {
		box, color = t.BoxChecked, t.Success
	}
	title := it.Title
	if r := []rune(title); len(r) > 80 {
		title = string(r[:77]) + "..."
	}
	out := []string{fmt.Sprintf("%s %s %s", C(t.Muted, fmt.Sprintf("%2d.", index)), C(color, box), title)}
	if it.Description != "" {
		out = append(out, "      "+C(t.Muted, firstLine(it.Description)))
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
