// Package persist binds typed application values to keys of a store.Medium.
//
// A Binding keeps an in-memory copy of one JSON-encoded value in step with
// the medium and with writes made by other contexts sharing it. Storage and
// decoding failures are logged and never returned: reads fall back to the
// initial value, failed writes keep the new value in memory only.
package persist

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/tada/internal/store"
)

// Option tunes a Binding.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger routes warnings and errors to l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: log.New(io.Discard)}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Binding is a typed value mirrored into one storage key.
type Binding[T any] struct {
	medium store.Medium
	key    string
	logger *log.Logger

	// writeMu orders local writes: compute, cache update and storage write
	// happen as one step per Update.
	writeMu sync.Mutex

	mu       sync.Mutex
	value    T
	writing  bool // a local write is between cache update and medium.Set
	stale    bool // an external change arrived while writing
	watchers map[int]func(T)
	nextID   int

	unsubscribe func()
}

// New reads key once and subscribes to changes made by other contexts.
// The caller must Close the binding to release the subscription.
func New[T any](m store.Medium, key string, initial T, opts ...Option) *Binding[T] {
	o := buildOptions(opts)
	b := &Binding[T]{
		medium:   m,
		key:      key,
		logger:   o.logger.With("key", key),
		watchers: map[int]func(T){},
	}
	b.value = b.read(initial)
	b.unsubscribe = m.Subscribe(b.onEvent)
	return b
}

func (b *Binding[T]) read(initial T) T {
	raw, ok, err := b.medium.Get(b.key)
	if err != nil {
		b.logger.Warn("error reading storage", "err", err)
		return initial
	}
	if !ok {
		return initial
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		b.logger.Warn("error decoding stored value", "err", err)
		return initial
	}
	return v
}

// Key returns the storage key.
func (b *Binding[T]) Key() string { return b.key }

// Value returns the cached value.
func (b *Binding[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Set replaces the value.
func (b *Binding[T]) Set(v T) {
	b.Update(func(T) T { return v })
}

// Update replaces the value with fn applied to the current cached value.
// The cache changes before the storage write, and stays changed if the
// write fails. Concurrent Updates apply one after another.
func (b *Binding[T]) Update(fn func(prev T) T) {
	b.writeMu.Lock()
	b.mu.Lock()
	next := fn(b.value)
	b.value = next
	b.writing = true
	b.mu.Unlock()

	b.write(next)
	next = b.settle(next)
	b.writeMu.Unlock()

	b.notify(next)
}

func (b *Binding[T]) write(v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("error encoding value", "err", err)
		return
	}
	if err := b.medium.Set(b.key, string(raw)); err != nil {
		b.logger.Error("error writing storage", "err", err)
	}
}

// settle ends a local write. External changes seen during the write are
// resolved by re-reading storage, which holds whichever write landed last.
func (b *Binding[T]) settle(v T) T {
	for {
		b.mu.Lock()
		if !b.stale {
			b.writing = false
			v = b.value
			b.mu.Unlock()
			return v
		}
		b.stale = false
		b.mu.Unlock()

		raw, ok, err := b.medium.Get(b.key)
		if err != nil {
			b.logger.Warn("error reading storage", "err", err)
			continue
		}
		if !ok {
			continue
		}
		var fresh T
		if err := json.Unmarshal([]byte(raw), &fresh); err != nil {
			b.logger.Warn("error decoding stored value", "err", err)
			continue
		}
		b.mu.Lock()
		b.value = fresh
		b.mu.Unlock()
	}
}

func (b *Binding[T]) onEvent(ev store.Event) {
	if ev.Key != b.key || ev.Removed() {
		return
	}
	var v T
	if err := json.Unmarshal([]byte(*ev.NewValue), &v); err != nil {
		b.logger.Warn("error decoding external change", "err", err)
		return
	}
	b.mu.Lock()
	if b.writing {
		// the pending Update re-reads storage once its write is done
		b.stale = true
		b.mu.Unlock()
		return
	}
	b.value = v
	b.mu.Unlock()
	b.notify(v)
}

// Watch calls fn after every change of the cached value, local or external.
func (b *Binding[T]) Watch(fn func(T)) (stop func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}
}

func (b *Binding[T]) notify(v T) {
	b.mu.Lock()
	fns := make([]func(T), 0, len(b.watchers))
	for _, fn := range b.watchers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Close releases the medium subscription and drops watchers.
func (b *Binding[T]) Close() {
	b.unsubscribe()
	b.mu.Lock()
	b.watchers = map[int]func(T){}
	b.mu.Unlock()
}
