package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/tada/internal/form"
	"github.com/idilsaglam/tada/internal/model"
)

// SubmitStartedMsg is emitted once a submit passed validation. The owner
// turns its loading state on and runs Run, which calls the submit handler
// and yields a SubmitDoneMsg.
type SubmitStartedMsg struct {
	Ticket     form.Ticket
	Submission form.Submission
	Run        tea.Cmd
}

// SubmitDoneMsg carries the handler's result back to the form.
type SubmitDoneMsg struct {
	Ticket form.Ticket
	Err    error
}

// CancelMsg is emitted when the user cancels the form.
type CancelMsg struct{}

type focusIndex int

const (
	focusTitle focusIndex = iota
	focusDescription
	focusSave
	focusCancel
	focusCount
)

type formKeys struct {
	Submit key.Binding
	Cancel key.Binding
	Next   key.Binding
	Prev   key.Binding
	Enter  key.Binding
}

func defaultFormKeys() formKeys {
	return formKeys{
		Submit: key.NewBinding(key.WithKeys("ctrl+s", "alt+enter"), key.WithHelp("ctrl+s", "save")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev")),
		Enter:  key.NewBinding(key.WithKeys("enter")),
	}
}

// FormModel is the Bubble Tea surface over form.Form.
type FormModel struct {
	form     *form.Form
	date     time.Time
	submit   form.SubmitFunc
	settings model.Settings

	title textinput.Model
	desc  textarea.Model
	focus focusIndex

	loading bool
	keys    formKeys
	help    help.Model
	styles  styles
	width   int
}

// NewFormModel opens a form for todo (nil for a new entry) on date. submit
// is invoked with the validated payload.
func NewFormModel(todo *model.Todo, date time.Time, submit form.SubmitFunc) FormModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 0 // length is reported by validation, not truncated

	ta := textarea.New()
	ta.Placeholder = "Add details (optional)"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(4)

	m := FormModel{
		form:     form.New(todo),
		date:     date,
		submit:   submit,
		title:    ti,
		desc:     ta,
		keys:     defaultFormKeys(),
		help:     help.New(),
		settings: model.DefaultSettings(),
		styles:   newStyles("light"),
		width:    60,
	}
	m.loadDraft()
	return m
}

func (m *FormModel) loadDraft() {
	d := m.form.Draft()
	m.title.SetValue(d.Title)
	m.title.CursorEnd()
	m.desc.SetValue(d.Description)
	m.desc.Blur()
	m.focus = focusTitle
	m.title.Focus()
}

// Sync re-targets the form at another todo. Draft, errors and touched
// state reset together when the identity differs.
func (m FormModel) Sync(todo *model.Todo) FormModel {
	if m.form.Sync(todo) {
		m.loadDraft()
	}
	return m
}

// Close tears the form down; a pending submit's completion becomes a no-op.
func (m FormModel) Close() { m.form.Close() }

// SetLoading is owned by the caller: while on, inputs and buttons ignore keys.
func (m FormModel) SetLoading(on bool) FormModel {
	m.loading = on
	return m
}

func (m FormModel) Loading() bool { return m.loading }

// SetSettings applies the calendar theme and date format.
func (m FormModel) SetSettings(st model.Settings) FormModel {
	m.settings = st
	m.styles = newStyles(st.Theme)
	return m
}

func (m FormModel) SetWidth(w int) FormModel {
	if w < 20 {
		w = 20
	}
	m.width = w
	m.title.Width = w - 6
	m.desc.SetWidth(w - 4)
	return m
}

// Form exposes the underlying state machine.
func (m FormModel) Form() *form.Form { return m.form }

func (m FormModel) Init() tea.Cmd { return textinput.Blink }

func (m FormModel) Update(msg tea.Msg) (FormModel, tea.Cmd) {
	switch msg := msg.(type) {
	case SubmitDoneMsg:
		m.form.Complete(msg.Ticket, msg.Err)
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Submit):
			return m.trySubmit()
		case key.Matches(msg, m.keys.Cancel):
			return m, cancel
		case key.Matches(msg, m.keys.Next):
			cmd := m.setFocus((m.focus + 1) % focusCount)
			return m, cmd
		case key.Matches(msg, m.keys.Prev):
			cmd := m.setFocus((m.focus + focusCount - 1) % focusCount)
			return m, cmd
		case key.Matches(msg, m.keys.Enter):
			switch m.focus {
			case focusTitle, focusSave:
				// the save button is disabled while the title is blank
				if !m.form.CanSubmit() {
					return m, nil
				}
				return m.trySubmit()
			case focusCancel:
				return m, cancel
			}
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTitle:
		before := m.title.Value()
		m.title, cmd = m.title.Update(msg)
		if v := m.title.Value(); v != before {
			m.form.SetField(form.Title, v)
		}
	case focusDescription:
		before := m.desc.Value()
		m.desc, cmd = m.desc.Update(msg)
		if v := m.desc.Value(); v != before {
			m.form.SetField(form.Description, v)
		}
	}
	return m, cmd
}

func cancel() tea.Msg { return CancelMsg{} }

// setFocus moves focus, blurring the field being left.
func (m *FormModel) setFocus(next focusIndex) tea.Cmd {
	if m.focus != next {
		switch m.focus {
		case focusTitle:
			m.title.Blur()
			m.form.Blur(form.Title)
		case focusDescription:
			m.desc.Blur()
			m.form.Blur(form.Description)
		}
	}
	m.focus = next
	switch next {
	case focusTitle:
		return m.title.Focus()
	case focusDescription:
		return m.desc.Focus()
	}
	return nil
}

func (m FormModel) trySubmit() (FormModel, tea.Cmd) {
	sub, ticket, ok := m.form.Begin(m.date)
	if !ok {
		return m, nil
	}
	handler := m.submit
	run := func() tea.Msg {
		return SubmitDoneMsg{Ticket: ticket, Err: callSubmit(handler, sub)}
	}
	return m, func() tea.Msg { return SubmitStartedMsg{Ticket: ticket, Submission: sub, Run: run} }
}

// callSubmit runs the handler, turning a panic into an error.
func callSubmit(handler form.SubmitFunc, sub form.Submission) (err error) {
	if handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return handler(context.Background(), sub)
}

func (m FormModel) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.title.Render(m.form.Heading()))
	b.WriteString("  " + s.muted.Render(m.settings.FormatDate(m.date)) + "\n\n")

	b.WriteString(s.label.Render("Title") + "\n")
	b.WriteString(m.title.View() + "\n")
	if e := m.form.VisibleError(form.Title); e != "" {
		b.WriteString(s.errorMsg.Render(e) + "\n")
	}
	b.WriteString(s.muted.Render(fmt.Sprintf("%d/%d", len([]rune(m.title.Value())), form.MaxTitle)) + "\n\n")

	b.WriteString(s.label.Render("Description") + "\n")
	b.WriteString(m.desc.View() + "\n")
	if e := m.form.VisibleError(form.Description); e != "" {
		b.WriteString(s.errorMsg.Render(e) + "\n")
	}
	b.WriteString(s.muted.Render(fmt.Sprintf("%d/%d", len([]rune(m.desc.Value())), form.MaxDescription)) + "\n\n")

	if e := m.form.VisibleError(form.Submit); e != "" {
		b.WriteString(s.errorMsg.Render("✖ "+e) + "\n\n")
	}

	label := m.form.SubmitLabel()
	if m.loading {
		label = "Saving..."
	}
	save := m.button("[ "+label+" ]", focusSave, !m.loading && m.form.CanSubmit())
	cancelBtn := m.button("[ Cancel ]", focusCancel, !m.loading)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, save, " ", cancelBtn) + "\n\n")

	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Submit, m.keys.Cancel, m.keys.Next, m.keys.Prev}))
	return b.String()
}

func (m FormModel) button(text string, idx focusIndex, enabled bool) string {
	switch {
	case !enabled:
		return m.styles.buttonDisabled.Render(text)
	case m.focus == idx:
		return m.styles.buttonFocused.Render(text)
	default:
		return m.styles.button.Render(text)
	}
}
