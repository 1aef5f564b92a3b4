// Package form holds the editing state of a todo: the draft, which fields the
// user has touched, and the errors to show. It renders nothing and stores
// nothing; the caller persists the Submission it produces.
package form

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/idilsaglam/tada/internal/model"
)

// Field names a slot in Errors.
type Field string

const (
	Title       Field = "title"
	Description Field = "description"
	Submit      Field = "submit"
)

const (
	MaxTitle       = 100
	MaxDescription = 500
)

// Validation messages.
const (
	ErrTitleRequired  = "Title is required"
	ErrTitleTooLong   = "Title must be 100 characters or less"
	ErrDescTooLong    = "Description must be 500 characters or less"
	ErrSubmitFallback = "Failed to save todo"
)

// Draft is the unsaved edit state.
type Draft struct {
	Title       string
	Description string
}

// Errors maps a field to its message. Missing means no error.
type Errors map[Field]string

// Submission is what a successful submit hands to the caller.
type Submission struct {
	Title       string
	Description string
	Date        time.Time
}

// SubmitFunc persists a submission. A non-nil error is shown to the user.
type SubmitFunc func(ctx context.Context, s Submission) error

// Validate checks a draft. The result is empty when the draft is valid.
func Validate(d Draft) Errors {
	errs := Errors{}
	title := strings.TrimSpace(d.Title)
	switch {
	case title == "":
		errs[Title] = ErrTitleRequired
	case utf8.RuneCountInString(title) > MaxTitle:
		errs[Title] = ErrTitleTooLong
	}
	if utf8.RuneCountInString(d.Description) > MaxDescription {
		errs[Description] = ErrDescTooLong
	}
	return errs
}

// Ticket identifies one submit attempt.
type Ticket struct {
	form       *Form
	generation uint64
}

// Form is the draft/touched/errors state machine for one edit surface.
type Form struct {
	identity   string
	editing    bool
	draft      Draft
	errors     Errors
	touched    map[Field]bool
	generation uint64
	closed     bool
}

// New opens a form for todo, or for a new entry when todo is nil.
func New(todo *model.Todo) *Form {
	f := &Form{}
	f.Reset(todo)
	return f
}

// Reset reinitializes draft, errors and touched state from todo.
func (f *Form) Reset(todo *model.Todo) {
	f.generation++
	f.errors = Errors{}
	f.touched = map[Field]bool{}
	f.closed = false
	if todo == nil {
		f.identity, f.editing = "", false
		f.draft = Draft{}
		return
	}
	f.identity, f.editing = todo.ID, true
	f.draft = Draft{Title: todo.Title, Description: todo.Description}
}

// Sync resets the form when todo names a different identity than the one
// being edited. It reports whether a reset happened.
func (f *Form) Sync(todo *model.Todo) bool {
	id, editing := "", false
	if todo != nil {
		id, editing = todo.ID, true
	}
	if id == f.identity && editing == f.editing {
		return false
	}
	f.Reset(todo)
	return true
}

// Close marks the form torn down. Later completions are ignored.
func (f *Form) Close() {
	f.closed = true
	f.generation++
}

func (f *Form) Draft() Draft { return f.draft }

// Editing is true when an existing todo was supplied.
func (f *Form) Editing() bool { return f.editing }

func (f *Form) Heading() string {
	if f.editing {
		return "Edit Todo"
	}
	return "Add New Todo"
}

func (f *Form) SubmitLabel() string {
	if f.editing {
		return "Update Todo"
	}
	return "Add Todo"
}

// CanSubmit guards the submit button: the trimmed title must be non-empty.
func (f *Form) CanSubmit() bool {
	return strings.TrimSpace(f.draft.Title) != ""
}

// SetField updates one draft field and drops that field's error, if any.
func (f *Form) SetField(field Field, value string) {
	switch field {
	case Title:
		f.draft.Title = value
	case Description:
		f.draft.Description = value
	default:
		return
	}
	delete(f.errors, field)
}

// Blur marks field touched. An empty title gets its required error at once.
func (f *Form) Blur(field Field) {
	f.touched[field] = true
	if field == Title && strings.TrimSpace(f.draft.Title) == "" {
		f.errors[Title] = ErrTitleRequired
	}
}

// Touched reports whether field was blurred or a submit was attempted.
func (f *Form) Touched(field Field) bool { return f.touched[field] }

// Error returns the stored message for field, visible or not.
func (f *Form) Error(field Field) string { return f.errors[field] }

// VisibleError returns the message to display. Field errors need the field
// to be touched; the submit error always shows.
func (f *Form) VisibleError(field Field) string {
	if field != Submit && !f.touched[field] {
		return ""
	}
	return f.errors[field]
}

// Validate runs the full check and replaces the error set with its result.
// On failure every field becomes touched.
func (f *Form) Validate() bool {
	f.errors = Validate(f.draft)
	if len(f.errors) == 0 {
		return true
	}
	f.touched[Title] = true
	f.touched[Description] = true
	return false
}

// Begin validates and, on success, returns the trimmed submission and a
// ticket for Complete. ok is false when validation failed; the handler must
// not be called then.
func (f *Form) Begin(date time.Time) (s Submission, t Ticket, ok bool) {
	if f.closed || !f.Validate() {
		return Submission{}, Ticket{}, false
	}
	s = Submission{
		Title:       strings.TrimSpace(f.draft.Title),
		Description: strings.TrimSpace(f.draft.Description),
		Date:        date,
	}
	return s, Ticket{form: f, generation: f.generation}, true
}

// Owns reports whether t was issued by this form since its last reset and
// the form is still open.
func (f *Form) Owns(t Ticket) bool {
	return !f.closed && t.form == f && t.generation == f.generation
}

// Complete records the handler's outcome. It is a no-op when the form was
// closed or reset since Begin.
func (f *Form) Complete(t Ticket, err error) {
	if !f.Owns(t) {
		return
	}
	if err == nil {
		delete(f.errors, Submit)
		return
	}
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = ErrSubmitFallback
	}
	f.errors[Submit] = msg
}

// Run is Begin, the handler, then Complete, for callers without an event loop.
func (f *Form) Run(ctx context.Context, date time.Time, submit SubmitFunc) (called bool) {
	s, t, ok := f.Begin(date)
	if !ok {
		return false
	}
	f.Complete(t, submit(ctx, s))
	return true
}
