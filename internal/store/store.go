// Package store defines the durable key-value medium shared by every open
// context (TUI session, CLI invocation) and the hub that fans change
// notifications out between them.
package store

import "errors"

// ErrClosed is returned by a Context or Backend used after Close.
var ErrClosed = errors.New("store: closed")

// Event describes a write made by some other context.
// A nil NewValue means the key was removed.
type Event struct {
	Key      string
	NewValue *string
	OldValue *string
}

// Removed reports whether the event is the deletion sentinel.
func (e Event) Removed() bool { return e.NewValue == nil }

// Medium is what a single context sees of the shared storage.
type Medium interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	// Subscribe registers fn for writes made by other contexts.
	// The returned func releases the subscription and is safe to call twice.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Backend is the raw persistent map behind a Hub.
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Watcher is implemented by backends that can see writes made by other
// processes. Watch blocks until stop is closed, calling emit per changed key
// and warn for errors that do not end the watch. A returned error means
// external changes are no longer reported.
type Watcher interface {
	Watch(stop <-chan struct{}, emit func(Event), warn func(error)) error
}

func ptr(s string) *string { return &s }
