package model

import "time"

// Settings is the persisted calendar preference record.
type Settings struct {
	StartOfWeek int    `json:"startOfWeek"` // 0 Sunday, 1 Monday
	Theme       string `json:"theme"`
	DateFormat  string `json:"dateFormat"`
}

// DefaultSettings is used when nothing usable is stored.
func DefaultSettings() Settings {
	return Settings{StartOfWeek: 0, Theme: "light", DateFormat: "short"}
}

// WeekStart returns the first day of the week containing t.
func (s Settings) WeekStart(t time.Time) time.Time {
	first := time.Sunday
	if s.StartOfWeek == 1 {
		first = time.Monday
	}
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Week returns the seven days of the week containing t.
func (s Settings) Week(t time.Time) []time.Time {
	start := s.WeekStart(t)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// FormatDate renders t per DateFormat ("short" or "long").
func (s Settings) FormatDate(t time.Time) string {
	if s.DateFormat == "long" {
		return t.Format("Monday, January 2, 2006")
	}
	return t.Format("Mon Jan 2 2006")
}
