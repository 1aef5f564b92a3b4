// Package cli routes tada's subcommands. Every command opens the configured
// backend, binds the calendar keys and works through the same persist layer
// the TUI uses.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/idilsaglam/tada/internal/config"
	"github.com/idilsaglam/tada/internal/form"
	"github.com/idilsaglam/tada/internal/logging"
	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/persist"
	"github.com/idilsaglam/tada/internal/store"
	"github.com/idilsaglam/tada/internal/tui"
	"github.com/idilsaglam/tada/internal/ui"
)

// Options tune a run. Zero values use the wall clock and the real TUI.
type Options struct {
	Now    func() time.Time
	RunTUI func(tui.Deps) error
}

type command func(s *session, args []string) int

var commands = map[string]command{
	"ls":       doList,
	"add":      doAdd,
	"edit":     doEdit,
	"done":     doToggle,
	"rm":       doRemove,
	"clear":    doClear,
	"check":    doCheck,
	"settings": doSettings,
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(cfg *config.Config, args []string, opt Options) int {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.RunTUI == nil {
		opt.RunTUI = tui.Run
	}
	if len(args) == 0 {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			PrintHelp()
			return 2
		}
		args = []string{"tui"}
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0
	case "tui":
		return doTUI(cfg, opt)
	}

	run, ok := commands[cmd]
	if !ok {
		ui.Fail("unknown subcommand: " + cmd)
		fmt.Fprintln(ui.Stderr())
		PrintHelp()
		return 2
	}

	logger, err := logging.New(ui.Stderr(), logging.Options{Level: cfg.LogLevel})
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	s, err := openSession(cfg, logger, opt)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	defer s.close()
	applyTheme(cfg, s.settings.Value())
	return run(s, a)
}

func PrintHelp() {
	ui.Printf(`tada - a calendar of todos

Usage:
  tada [root flags] <subcommand> [args]

Subcommands:
  tui                                   Open the interactive calendar (default in a terminal)
  ls [-date D] [-group]                 List the todos of a day
  add [-date D] [-desc S] <title...>    Add a todo
  edit [-date D] [-desc S] <index> [title...]
                                        Change a todo's title or description
  done [-date D] <index>                Toggle done for the todo at 1-based index
  rm [-date D] <index>                  Remove the todo at 1-based index
  clear                                 Delete all todos and calendar settings
  check                                 Check that storage accepts writes
  settings [key value]                  Show or change startOfWeek, theme, dateFormat
  help                                  Show this help

Root flags:
  -backend file|sqlite|memory   -data PATH   -log-level LEVEL
  -log-file PATH                -theme classic|neon|mono

Dates are YYYY-MM-DD, today, tomorrow or yesterday.

Examples:
  tada add "Buy milk"
  tada add -date tomorrow -desc "the oat one" Buy milk
  tada ls -group
  tada done 2
  tada settings startOfWeek 1
`)
}

// session holds what one subcommand works with.
type session struct {
	cfg    *config.Config
	now    func() time.Time
	logger *log.Logger

	hub      *store.Hub
	medium   *store.Context
	todos    *persist.Binding[model.TodoMap]
	settings *persist.Binding[model.Settings]
}

func openSession(cfg *config.Config, logger *log.Logger, opt Options) (*session, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	hub := store.NewHub(backend, store.WithLogger(logger))
	m := hub.Open()
	return &session{
		cfg:      cfg,
		now:      opt.Now,
		logger:   logger,
		hub:      hub,
		medium:   m,
		todos:    persist.Todos(m, persist.WithLogger(logger)),
		settings: persist.Settings(m, persist.WithLogger(logger)),
	}, nil
}

func (s *session) close() {
	s.todos.Close()
	s.settings.Close()
	if err := s.hub.Close(); err != nil {
		s.logger.Warn("error closing storage", "err", err)
	}
}

// writable fails the command early when storage rejects writes, since the
// bindings only log write errors.
func (s *session) writable() bool {
	if persist.IsAvailable(s.medium, persist.WithLogger(s.logger)) {
		return true
	}
	ui.Fail("storage unavailable: " + s.cfg.DataPath)
	return false
}

// day resolves a -date value against the session clock.
func (s *session) day(v string) (time.Time, error) {
	today := startOfDay(s.now())
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	d, err := model.ParseDateKey(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD)", v)
	}
	return d, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// pick resolves a 1-based index on day. code is non-zero on failure.
func (s *session) pick(day time.Time, arg string) (model.Todo, int) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		ui.Fail("not a number: " + arg)
		return model.Todo{}, 2
	}
	todos := s.todos.Value().Day(day)
	if n < 1 || n > len(todos) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(todos), n))
		fmt.Fprintln(ui.Stderr(), ui.C(ui.Current().Muted, "Hint: run `tada ls` to see valid indexes"))
		return model.Todo{}, 2
	}
	return todos[n-1], 0
}

// submit runs f's validation and handler, reporting the outcome.
func (s *session) submit(f *form.Form, day time.Time, fn form.SubmitFunc, done string) int {
	if !f.Run(context.Background(), day, fn) {
		for _, field := range []form.Field{form.Title, form.Description} {
			if e := f.VisibleError(field); e != "" {
				ui.Fail(e)
			}
		}
		return 2
	}
	if e := f.VisibleError(form.Submit); e != "" {
		ui.Fail(e)
		return 1
	}
	ui.OK(done)
	return 0
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(ui.Stderr())
	return fs
}

// applyTheme follows the calendar theme unless a CLI theme was configured.
func applyTheme(cfg *config.Config, settings model.Settings) {
	if cfg.UITheme == config.DefaultUITheme && settings.Theme == "dark" {
		ui.SetTheme("neon")
		return
	}
	ui.SetTheme(cfg.UITheme)
}

// -------------- subcommand impls ----------------

func doTUI(cfg *config.Config, opt Options) int {
	flog, err := logging.OpenFile(cfg.LogFile, logging.Options{Level: cfg.LogLevel})
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	defer flog.Close()

	s, err := openSession(cfg, flog.Logger, opt)
	if err != nil {
		ui.Fail(err.Error())
		return 1
	}
	defer s.close()

	flog.Info("tui started", "backend", cfg.Backend, "data", cfg.DataPath)
	err = opt.RunTUI(tui.Deps{
		Todos:        s.todos,
		Settings:     s.settings,
		Availability: persist.NewAvailability(s.medium, persist.WithLogger(flog.Logger)),
		Logger:       flog.Logger,
		Now:          opt.Now,
	})
	if err != nil {
		flog.Error("tui exited", "err", err)
		ui.Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func doList(s *session, args []string) int {
	fs := newFlagSet("ls")
	date := fs.String("date", "", "day to list")
	group := fs.Bool("group", false, "group output by pending/done")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	day, err := s.day(*date)
	if err != nil {
		ui.Fail(err.Error())
		return 2
	}

	settings := s.settings.Value()
	all := s.todos.Value()
	todos := all.Day(day)
	d, p := model.Stats(todos)
	t := ui.Current()
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		ui.C(t.Title, settings.FormatDate(day)),
		ui.C(t.Success, "✔"), d,
		ui.C(t.Pending, "•"), p,
		ui.C(t.Accent, "Total"), len(todos),
	)

	lines := []string{
		header,
		ui.C(t.Muted, ui.ProgressBar(d, d+p, 28)),
		ui.WeekStrip(settings, day, all),
		"",
	}
	if *group {
		lines = append(lines, ui.GroupedTodoLines(todos)...)
	} else {
		lines = append(lines, ui.TodoLines(todos)...)
	}
	lines = append(lines, "", ui.C(t.Muted, "Tip: add with `tada add \"Buy milk\"`"))
	ui.Panel(lines)
	return 0
}

func doAdd(s *session, args []string) int {
	fs := newFlagSet("add")
	date := fs.String("date", "", "day to add the todo to")
	desc := fs.String("desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		ui.Fail("usage: tada add [-date D] [-desc S] <title...>")
		return 2
	}
	day, err := s.day(*date)
	if err != nil {
		ui.Fail(err.Error())
		return 2
	}
	if !s.writable() {
		return 1
	}

	f := form.New(nil)
	f.SetField(form.Title, strings.Join(fs.Args(), " "))
	f.SetField(form.Description, *desc)
	return s.submit(f, day, func(_ context.Context, sub form.Submission) error {
		t := model.NewTodo(sub.Title, sub.Description, s.now())
		s.todos.Update(func(m model.TodoMap) model.TodoMap { return m.Add(sub.Date, t) })
		return nil
	}, "added")
}

var errGone = errors.New("todo no longer exists")

func doEdit(s *session, args []string) int {
	fs := newFlagSet("edit")
	date := fs.String("date", "", "day of the todo")
	desc := fs.String("desc", "", "new description")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		ui.Fail("usage: tada edit [-date D] [-desc S] <index> [title...]")
		return 2
	}
	descSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "desc" {
			descSet = true
		}
	})
	if fs.NArg() == 1 && !descSet {
		ui.Fail("edit: nothing to change")
		return 2
	}
	day, err := s.day(*date)
	if err != nil {
		ui.Fail(err.Error())
		return 2
	}
	todo, code := s.pick(day, fs.Arg(0))
	if code != 0 {
		return code
	}
	if !s.writable() {
		return 1
	}

	f := form.New(&todo)
	if fs.NArg() > 1 {
		f.SetField(form.Title, strings.Join(fs.Args()[1:], " "))
	}
	if descSet {
		f.SetField(form.Description, *desc)
	}
	return s.submit(f, day, func(_ context.Context, sub form.Submission) error {
		todo.Title = sub.Title
		todo.Description = sub.Description
		todo.UpdatedAt = s.now()
		found := false
		s.todos.Update(func(m model.TodoMap) model.TodoMap {
			out, ok := m.Replace(sub.Date, todo)
			found = ok
			return out
		})
		if !found {
			return errGone
		}
		return nil
	}, "updated")
}

func doToggle(s *session, args []string) int {
	return s.mutate("done", args, func(day time.Time, t model.Todo) string {
		now := s.now()
		s.todos.Update(func(m model.TodoMap) model.TodoMap {
			for _, cur := range m.Day(day) {
				if cur.ID == t.ID {
					cur.Completed = !cur.Completed
					cur.UpdatedAt = now
					out, _ := m.Replace(day, cur)
					return out
				}
			}
			return m
		})
		return "toggled"
	})
}

func doRemove(s *session, args []string) int {
	return s.mutate("rm", args, func(day time.Time, t model.Todo) string {
		s.todos.Update(func(m model.TodoMap) model.TodoMap {
			out, _ := m.Remove(day, t.ID)
			return out
		})
		return "removed"
	})
}

// mutate parses [-date D] <index> and applies fn to the picked todo.
func (s *session) mutate(name string, args []string, fn func(day time.Time, t model.Todo) string) int {
	fs := newFlagSet(name)
	date := fs.String("date", "", "day of the todo")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		ui.Fail("usage: tada " + name + " [-date D] <index>")
		return 2
	}
	day, err := s.day(*date)
	if err != nil {
		ui.Fail(err.Error())
		return 2
	}
	todo, code := s.pick(day, fs.Arg(0))
	if code != 0 {
		return code
	}
	if !s.writable() {
		return 1
	}
	ui.OK(fn(day, todo))
	return 0
}

func doClear(s *session, args []string) int {
	if len(args) != 0 {
		ui.Fail("usage: tada clear")
		return 2
	}
	persist.ClearCalendarData(s.medium, s.logger)
	ui.OK("cleared calendar data")
	return 0
}

func doCheck(s *session, args []string) int {
	if len(args) != 0 {
		ui.Fail("usage: tada check")
		return 2
	}
	if !persist.IsAvailable(s.medium, persist.WithLogger(s.logger)) {
		ui.Fail(fmt.Sprintf("storage unavailable (%s)", s.cfg.Backend))
		return 1
	}
	ui.OK(fmt.Sprintf("storage available (%s)", s.cfg.Backend))
	return 0
}

func doSettings(s *session, args []string) int {
	switch len(args) {
	case 0:
		st := s.settings.Value()
		ui.Printf("startOfWeek  %d (%s)\n", st.StartOfWeek, time.Weekday(st.StartOfWeek))
		ui.Printf("theme        %s\n", st.Theme)
		ui.Printf("dateFormat   %s\n", st.DateFormat)
		return 0
	case 2:
	default:
		ui.Fail("usage: tada settings [key value]")
		return 2
	}

	key, value := args[0], strings.ToLower(args[1])
	st := s.settings.Value()
	switch key {
	case "startOfWeek":
		switch value {
		case "0", "sunday":
			st.StartOfWeek = 0
		case "1", "monday":
			st.StartOfWeek = 1
		default:
			ui.Fail("startOfWeek: want 0 (sunday) or 1 (monday)")
			return 2
		}
	case "theme":
		if value != "light" && value != "dark" {
			ui.Fail("theme: want light or dark")
			return 2
		}
		st.Theme = value
	case "dateFormat":
		if value != "short" && value != "long" {
			ui.Fail("dateFormat: want short or long")
			return 2
		}
		st.DateFormat = value
	default:
		ui.Fail("unknown setting: " + key)
		return 2
	}
	if !s.writable() {
		return 1
	}
	s.settings.Set(st)
	ui.OK(key + " = " + value)
	return 0
}
