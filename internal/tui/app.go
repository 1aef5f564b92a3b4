// Package tui is the interactive calendar: a day view of todos, a week
// strip, and the add/edit form. State lives in persist bindings, so changes
// written by another tada process show up while the TUI is open.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tada/internal/form"
	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/persist"
)

// ErrTodoGone is the submit error when the edited todo was deleted
// elsewhere while the form was open.
var ErrTodoGone = errors.New("this todo no longer exists; it may have been deleted in another window")

// listItem adapts a Todo to bubbles/list.Item
type listItem struct {
	todo model.Todo
}

func (i listItem) Title() string       { return i.todo.Title }
func (i listItem) Description() string { return i.todo.Description }
func (i listItem) FilterValue() string { return i.todo.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct {
	styles *styles
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	s := d.styles
	box := s.muted.Render(boxUnchecked)
	text := it.todo.Title
	if it.todo.Completed {
		box = s.success.Render(boxChecked)
		text = s.done.Render(text)
	}
	line := box + " " + text
	if it.todo.Description != "" {
		line += "  " + s.muted.Render(firstLine(it.todo.Description))
	}
	prefix := "  "
	if index == m.Index() {
		prefix = s.selected.Render("> ")
	}
	fmt.Fprint(w, prefix+line)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

type appKeys struct {
	Add, Edit, Toggle, Delete, Undo key.Binding
	PrevDay, NextDay, Today         key.Binding
	WeekStart, Theme, DateFormat    key.Binding
	Quit                            key.Binding
}

func defaultAppKeys() appKeys {
	return appKeys{
		Add:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:       key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "done")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Undo:       key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
		PrevDay:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("←/h", "prev day")),
		NextDay:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("→/l", "next day")),
		Today:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		WeekStart:  key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "week start")),
		Theme:      key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "theme")),
		DateFormat: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "date format")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type undoEntry struct {
	date  time.Time
	index int
	todo  model.Todo
}

// messages
type (
	todosChangedMsg    struct{}
	settingsChangedMsg struct{}
	availabilityMsg    struct{ ok bool }
)

// Deps are the bindings the App reads and writes.
type Deps struct {
	Todos        *persist.Binding[model.TodoMap]
	Settings     *persist.Binding[model.Settings]
	Availability *persist.Availability
	Logger       *log.Logger
	Now          func() time.Time
}

// App is the root Bubble Tea model.
type App struct {
	deps   Deps
	keys   appKeys
	styles *styles

	date time.Time
	list list.Model

	formOpen bool
	form     FormModel
	editing  *model.Todo
	loading  bool

	undo      *undoEntry
	available bool
	status    string

	width, height int
}

// NewApp builds the model for today's date.
func NewApp(d Deps) App {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	st := newStyles(d.Settings.Value().Theme)
	a := App{
		deps:   d,
		keys:   defaultAppKeys(),
		styles: &st,
		date:   startOfDay(d.Now()),
		width:  80,
		height: 24,
	}

	l := list.New(nil, itemDelegate{styles: a.styles}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = st.title
	l.Styles.HelpStyle = st.help
	l.Styles.PaginationStyle = st.help
	l.SetStatusBarItemName("todo", "todos")
	// h/l and arrows move between days, not pages.
	l.KeyMap.PrevPage.SetKeys("pgup")
	l.KeyMap.NextPage.SetKeys("pgdown")
	l.KeyMap.Quit.SetEnabled(false)
	short := []key.Binding{a.keys.Add, a.keys.Edit, a.keys.Toggle, a.keys.Delete, a.keys.PrevDay, a.keys.NextDay}
	full := append(short, a.keys.Undo, a.keys.Today, a.keys.WeekStart, a.keys.Theme, a.keys.DateFormat)
	l.AdditionalShortHelpKeys = func() []key.Binding { return short }
	l.AdditionalFullHelpKeys = func() []key.Binding { return full }
	a.list = l
	a.resize()
	a.refresh()
	return a
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Date returns the selected day.
func (a App) Date() time.Time { return a.date }

// FormOpen reports whether the add/edit form is showing.
func (a App) FormOpen() bool { return a.formOpen }

// Loading reports whether a submit is in flight.
func (a App) Loading() bool { return a.loading }

// Form returns the open form model.
func (a App) Form() FormModel { return a.form }

// Status returns the last status line.
func (a App) Status() string { return a.status }

func (a *App) refresh() {
	todos := a.deps.Todos.Value().Day(a.date)
	items := make([]list.Item, 0, len(todos))
	for _, t := range todos {
		items = append(items, listItem{todo: t})
	}
	a.list.SetItems(items)
	a.list.Title = a.header(todos)
}

func (a *App) header(todos []model.Todo) string {
	s := a.styles
	settings := a.deps.Settings.Value()
	dn, pn := model.Stats(todos)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		s.title.Render(settings.FormatDate(a.date)),
		s.success.Render("✔"), dn,
		s.pending.Render("•"), pn,
		s.accent.Render("Total"), len(todos),
	)
}

func (a *App) applySettings() {
	settings := a.deps.Settings.Value()
	*a.styles = newStyles(settings.Theme)
	a.list.Styles.Title = a.styles.title
	a.list.Styles.HelpStyle = a.styles.help
	a.list.Styles.PaginationStyle = a.styles.help
	if a.formOpen {
		a.form = a.form.SetSettings(settings)
	}
	a.refresh()
}

func (a App) Init() tea.Cmd {
	avail := a.deps.Availability
	if avail == nil {
		return nil
	}
	return func() tea.Msg { return availabilityMsg{ok: avail.Check()} }
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.resize()
		return a, nil

	case availabilityMsg:
		a.available = msg.ok
		if !msg.ok {
			a.deps.Logger.Warn("storage unavailable; changes are kept in memory only")
		}
		return a, nil

	case todosChangedMsg:
		a.refresh()
		if a.formOpen && a.editing != nil {
			if _, ok := findTodo(a.deps.Todos.Value().Day(a.date), a.editing.ID); !ok {
				a.status = "the todo being edited was removed elsewhere"
			}
		}
		return a, nil

	case settingsChangedMsg:
		a.applySettings()
		return a, nil

	case SubmitStartedMsg:
		if !a.formOpen || !a.form.Form().Owns(msg.Ticket) {
			return a, nil
		}
		a.loading = true
		a.form = a.form.SetLoading(true)
		return a, msg.Run

	case SubmitDoneMsg:
		if !a.formOpen || !a.form.Form().Owns(msg.Ticket) {
			// torn down or reopened while the handler ran
			return a, nil
		}
		a.loading = false
		a.form = a.form.SetLoading(false)
		a.form, _ = a.form.Update(msg)
		if msg.Err == nil {
			a.closeForm()
			a.status = "saved"
		}
		return a, nil

	case CancelMsg:
		a.closeForm()
		return a, nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}
	if a.formOpen {
		var cmd tea.Cmd
		a.form, cmd = a.form.Update(msg)
		return a, cmd
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		if next, cmd, handled := a.handleKey(km); handled {
			return next, cmd
		}
	}
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)
	return a, cmd
}

func (a App) handleKey(msg tea.KeyMsg) (App, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit, true

	case key.Matches(msg, a.keys.Add):
		cmd := a.openForm(nil)
		return a, cmd, true

	case key.Matches(msg, a.keys.Edit):
		if t, ok := a.selected(); ok {
			cmd := a.openForm(&t)
			return a, cmd, true
		}
		return a, nil, true

	case key.Matches(msg, a.keys.Toggle):
		if t, ok := a.selected(); ok {
			date, now := a.date, a.deps.Now()
			a.deps.Todos.Update(func(m model.TodoMap) model.TodoMap {
				return toggle(m, date, t.ID, now)
			})
			a.refresh()
		}
		return a, nil, true

	case key.Matches(msg, a.keys.Delete):
		if t, ok := a.selected(); ok {
			a.undo = &undoEntry{date: a.date, index: a.list.Index(), todo: t}
			date := a.date
			a.deps.Todos.Update(func(m model.TodoMap) model.TodoMap {
				out, _ := m.Remove(date, t.ID)
				return out
			})
			a.refresh()
			a.status = "deleted (u to undo)"
		}
		return a, nil, true

	case key.Matches(msg, a.keys.Undo):
		if u := a.undo; u != nil {
			a.deps.Todos.Update(func(m model.TodoMap) model.TodoMap {
				return m.Insert(u.date, u.index, u.todo)
			})
			a.undo = nil
			a.date = u.date
			a.refresh()
			a.list.Select(u.index)
			a.status = "restored"
		}
		return a, nil, true

	case key.Matches(msg, a.keys.PrevDay):
		a.date = a.date.AddDate(0, 0, -1)
		a.refresh()
		return a, nil, true

	case key.Matches(msg, a.keys.NextDay):
		a.date = a.date.AddDate(0, 0, 1)
		a.refresh()
		return a, nil, true

	case key.Matches(msg, a.keys.Today):
		a.date = startOfDay(a.deps.Now())
		a.refresh()
		return a, nil, true

	case key.Matches(msg, a.keys.WeekStart):
		a.deps.Settings.Update(func(s model.Settings) model.Settings {
			s.StartOfWeek = 1 - s.StartOfWeek
			return s
		})
		a.applySettings()
		return a, nil, true

	case key.Matches(msg, a.keys.Theme):
		a.deps.Settings.Update(func(s model.Settings) model.Settings {
			if s.Theme == "dark" {
				s.Theme = "light"
			} else {
				s.Theme = "dark"
			}
			return s
		})
		a.applySettings()
		return a, nil, true

	case key.Matches(msg, a.keys.DateFormat):
		a.deps.Settings.Update(func(s model.Settings) model.Settings {
			if s.DateFormat == "long" {
				s.DateFormat = "short"
			} else {
				s.DateFormat = "long"
			}
			return s
		})
		a.applySettings()
		return a, nil, true
	}
	return a, nil, false
}

func (a App) selected() (model.Todo, bool) {
	it, ok := a.list.SelectedItem().(listItem)
	if !ok {
		return model.Todo{}, false
	}
	return it.todo, true
}

// toggle flips Completed on the stored record, keeping any other field
// written elsewhere since the list was drawn.
func toggle(m model.TodoMap, date time.Time, id string, now time.Time) model.TodoMap {
	cur, ok := findTodo(m.Day(date), id)
	if !ok {
		return m
	}
	cur.Completed = !cur.Completed
	cur.UpdatedAt = now
	out, _ := m.Replace(date, cur)
	return out
}

func findTodo(todos []model.Todo, id string) (model.Todo, bool) {
	for _, t := range todos {
		if t.ID == id {
			return t, true
		}
	}
	return model.Todo{}, false
}

func (a *App) openForm(todo *model.Todo) tea.Cmd {
	if a.formOpen {
		a.form.Close()
	}
	a.editing = todo
	a.form = NewFormModel(todo, a.date, a.submitHandler(todo)).
		SetSettings(a.deps.Settings.Value()).
		SetWidth(a.width - 4)
	a.formOpen = true
	a.loading = false
	a.status = ""
	return a.form.Init()
}

func (a *App) closeForm() {
	if a.formOpen {
		a.form.Close()
	}
	a.formOpen = false
	a.editing = nil
	a.loading = false
	a.refresh()
}

// submitHandler persists a submission through the todos binding.
func (a *App) submitHandler(editing *model.Todo) form.SubmitFunc {
	todos := a.deps.Todos
	now := a.deps.Now
	var original model.Todo
	if editing != nil {
		original = *editing
	}
	return func(ctx context.Context, s form.Submission) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if editing == nil {
			t := model.NewTodo(s.Title, s.Description, now())
			todos.Update(func(m model.TodoMap) model.TodoMap { return m.Add(s.Date, t) })
			return nil
		}
		found := false
		todos.Update(func(m model.TodoMap) model.TodoMap {
			cur, ok := findTodo(m.Day(s.Date), original.ID)
			if !ok {
				return m
			}
			cur.Title = s.Title
			cur.Description = s.Description
			cur.UpdatedAt = now()
			out, ok := m.Replace(s.Date, cur)
			found = ok
			return out
		})
		if !found {
			return ErrTodoGone
		}
		return nil
	}
}

func (a *App) resize() {
	listHeight := a.height - 6
	if listHeight < 3 {
		listHeight = 3
	}
	a.list.SetSize(a.width-4, listHeight)
	if a.formOpen {
		a.form = a.form.SetWidth(a.width - 4)
	}
}

func (a App) View() string {
	s := a.styles
	if a.formOpen {
		return s.border.Render(a.form.View())
	}
	var b strings.Builder
	b.WriteString(a.weekStrip() + "\n")
	b.WriteString(a.list.View())
	b.WriteString("\n" + a.statusLine())
	return s.border.Render(b.String())
}

func (a App) weekStrip() string {
	s := a.styles
	settings := a.deps.Settings.Value()
	todos := a.deps.Todos.Value()
	cells := make([]string, 0, 7)
	for _, d := range settings.Week(a.date) {
		cell := fmt.Sprintf("%s %2d", d.Weekday().String()[:2], d.Day())
		if len(todos.Day(d)) > 0 {
			cell += "•"
		} else {
			cell += " "
		}
		if model.DateKey(d) == model.DateKey(a.date) {
			cell = s.today.Render(cell)
		} else {
			cell = s.muted.Render(cell)
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, " ")
}

func (a App) statusLine() string {
	s := a.styles
	var parts []string
	if !a.available {
		parts = append(parts, s.errorMsg.Render("storage unavailable"))
	}
	if a.status != "" {
		parts = append(parts, s.muted.Render(a.status))
	}
	return strings.Join(parts, "  ")
}

// Run starts the program and wires binding changes into it. It returns when
// the user quits.
func Run(d Deps) error {
	p := tea.NewProgram(NewApp(d), tea.WithAltScreen())

	// Send from a goroutine: local writes notify watchers from inside
	// Update, where a blocking Send would deadlock the event loop.
	stopTodos := d.Todos.Watch(func(model.TodoMap) { go p.Send(todosChangedMsg{}) })
	defer stopTodos()
	stopSettings := d.Settings.Watch(func(model.Settings) { go p.Send(settingsChangedMsg{}) })
	defer stopSettings()

	_, err := p.Run()
	return err
}
