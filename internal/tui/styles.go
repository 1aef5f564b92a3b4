package tui

import "github.com/charmbracelet/lipgloss"

// ------- styling (Lip Gloss), one palette per calendar theme -------
type styles struct {
	title    lipgloss.Style
	success  lipgloss.Style
	pending  lipgloss.Style
	accent   lipgloss.Style
	muted    lipgloss.Style
	errorMsg lipgloss.Style

	selected lipgloss.Style
	done     lipgloss.Style
	help     lipgloss.Style
	border   lipgloss.Style

	button         lipgloss.Style
	buttonFocused  lipgloss.Style
	buttonDisabled lipgloss.Style
	label          lipgloss.Style
	today          lipgloss.Style
}

const (
	boxChecked   = "☑"
	boxUnchecked = "☐"
)

func newStyles(theme string) styles {
	fg := lipgloss.Color("0")
	frame := lipgloss.Color("8")
	accent := lipgloss.Color("12")
	if theme == "dark" {
		fg = lipgloss.Color("15")
		frame = lipgloss.Color("13")
		accent = lipgloss.Color("14")
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		accent:   lipgloss.NewStyle().Foreground(accent),
		muted:    lipgloss.NewStyle().Faint(true),
		errorMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),

		selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		done:     lipgloss.NewStyle().Faint(true).Strikethrough(true),
		help:     lipgloss.NewStyle().Faint(true),
		border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Padding(0, 1),

		button:         lipgloss.NewStyle().Foreground(fg).Padding(0, 1),
		buttonFocused:  lipgloss.NewStyle().Foreground(fg).Background(accent).Bold(true).Padding(0, 1),
		buttonDisabled: lipgloss.NewStyle().Faint(true).Padding(0, 1),
		label:          lipgloss.NewStyle().Bold(true),
		today:          lipgloss.NewStyle().Foreground(accent).Bold(true).Underline(true),
	}
}
