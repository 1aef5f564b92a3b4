package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the key format of a day in a TodoMap.
const DateLayout = "2006-01-02"

// Todo is the domain model for a dated todo entry.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewTodo stamps a fresh id and timestamps.
func NewTodo(title, description string, now time.Time) Todo {
	return Todo{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TodoMap holds todos per day, keyed by DateKey.
type TodoMap map[string][]Todo

// DateKey returns the TodoMap key for the day containing t.
func DateKey(t time.Time) string { return t.Format(DateLayout) }

// ParseDateKey parses a YYYY-MM-DD day in the local time zone.
func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}

// Day returns the todos of one day. The slice is shared with m.
func (m TodoMap) Day(date time.Time) []Todo { return m[DateKey(date)] }

// Clone copies m deep enough that editing a day does not alias the original.
func (m TodoMap) Clone() TodoMap {
	out := make(TodoMap, len(m))
	for k, v := range m {
		out[k] = append([]Todo(nil), v...)
	}
	return out
}

// Add appends t to the given day and returns the new map.
func (m TodoMap) Add(date time.Time, t Todo) TodoMap {
	out := m.Clone()
	key := DateKey(date)
	out[key] = append(out[key], t)
	return out
}

// Replace swaps the todo with t.ID on the given day. ok is false when the id
// is not on that day.
func (m TodoMap) Replace(date time.Time, t Todo) (TodoMap, bool) {
	key := DateKey(date)
	for i, cur := range m[key] {
		if cur.ID == t.ID {
			out := m.Clone()
			out[key][i] = t
			return out, true
		}
	}
	return m, false
}

// Remove drops the todo with id from the given day. Empty days are deleted.
func (m TodoMap) Remove(date time.Time, id string) (TodoMap, bool) {
	key := DateKey(date)
	for i, cur := range m[key] {
		if cur.ID == id {
			out := m.Clone()
			out[key] = append(out[key][:i], out[key][i+1:]...)
			if len(out[key]) == 0 {
				delete(out, key)
			}
			return out, true
		}
	}
	return m, false
}

// Insert puts t at index i of the given day, clamping i into range.
func (m TodoMap) Insert(date time.Time, i int, t Todo) TodoMap {
	out := m.Clone()
	key := DateKey(date)
	day := out[key]
	if i < 0 {
		i = 0
	}
	if i > len(day) {
		i = len(day)
	}
	day = append(day, Todo{})
	copy(day[i+1:], day[i:])
	day[i] = t
	out[key] = day
	return out
}

// Stats counts completed and pending todos.
func Stats(todos []Todo) (done, pending int) {
	for _, t := range todos {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
