package persist

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/store"
)

// Storage keys owned by the calendar.
const (
	TodosKey    = "todos"
	SettingsKey = "calendarSettings"
)

// Todos binds the per-day todo map.
func Todos(m store.Medium, opts ...Option) *Binding[model.TodoMap] {
	return New(m, TodosKey, model.TodoMap{}, opts...)
}

// Settings binds the calendar preferences.
func Settings(m store.Medium, opts ...Option) *Binding[model.Settings] {
	return New(m, SettingsKey, model.DefaultSettings(), opts...)
}

// ClearCalendarData removes the todos and settings keys and nothing else.
// Failures are logged; the call itself never fails.
func ClearCalendarData(m store.Medium, logger *log.Logger) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	for _, key := range []string{TodosKey, SettingsKey} {
		if err := m.Remove(key); err != nil {
			logger.Error("error clearing storage", "key", key, "err", err)
		}
	}
}
