package store

import (
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

// Option tunes a Hub.
type Option func(*Hub)

// WithLogger routes watcher failures to l.
func WithLogger(l *log.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// Hub shares one Backend between many contexts.
type Hub struct {
	backend Backend
	logger  *log.Logger

	mu       sync.Mutex
	contexts map[*Context]struct{}
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// NewHub wraps b. If b implements Watcher, external writes are forwarded to
// every open context until Close.
func NewHub(b Backend, opts ...Option) *Hub {
	h := &Hub{
		backend:  b,
		logger:   log.New(io.Discard),
		contexts: make(map[*Context]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if w, ok := b.(Watcher); ok {
		h.stop = make(chan struct{})
		h.done = make(chan struct{})
		go func() {
			defer close(h.done)
			err := w.Watch(h.stop,
				func(ev Event) { h.broadcast(nil, ev) },
				func(err error) { h.logger.Warn("error watching storage", "err", err) },
			)
			if err != nil {
				h.logger.Warn("watching storage failed; changes from other processes will not be seen", "err", err)
			}
		}()
	}
	return h
}

// Open returns a new context. Writes through it are announced to the others.
func (h *Hub) Open() *Context {
	c := &Context{hub: h, subs: make(map[int]func(Event))}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.closed = true
		return c
	}
	h.contexts[c] = struct{}{}
	return c
}

// Close stops the watcher, detaches every context and closes the backend.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	ctxs := make([]*Context, 0, len(h.contexts))
	for c := range h.contexts {
		ctxs = append(ctxs, c)
	}
	h.contexts = map[*Context]struct{}{}
	h.mu.Unlock()

	for _, c := range ctxs {
		c.detach()
	}
	if h.stop != nil {
		close(h.stop)
		<-h.done
	}
	return h.backend.Close()
}

// broadcast delivers ev to every context except from.
func (h *Hub) broadcast(from *Context, ev Event) {
	h.mu.Lock()
	targets := make([]*Context, 0, len(h.contexts))
	for c := range h.contexts {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.deliver(ev)
	}
}

func (h *Hub) release(c *Context) {
	h.mu.Lock()
	delete(h.contexts, c)
	h.mu.Unlock()
}

// Context is one view of the Hub's storage. It implements Medium.
type Context struct {
	hub *Hub

	mu     sync.Mutex
	subs   map[int]func(Event)
	nextID int
	closed bool
}

var _ Medium = (*Context)(nil)

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Context) Get(key string) (string, bool, error) {
	if c.isClosed() {
		return "", false, ErrClosed
	}
	return c.hub.backend.Get(key)
}

func (c *Context) Set(key, value string) error {
	if c.isClosed() {
		return ErrClosed
	}
	old, had, err := c.hub.backend.Get(key)
	if err != nil {
		had = false
	}
	if err := c.hub.backend.Set(key, value); err != nil {
		return err
	}
	ev := Event{Key: key, NewValue: ptr(value)}
	if had {
		ev.OldValue = ptr(old)
	}
	c.hub.broadcast(c, ev)
	return nil
}

func (c *Context) Remove(key string) error {
	if c.isClosed() {
		return ErrClosed
	}
	old, had, err := c.hub.backend.Get(key)
	if err != nil {
		had = false
	}
	if err := c.hub.backend.Remove(key); err != nil {
		return err
	}
	if had {
		c.hub.broadcast(c, Event{Key: key, OldValue: ptr(old)})
	}
	return nil
}

func (c *Context) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Close drops every subscription and detaches from the hub.
func (c *Context) Close() error {
	c.detach()
	c.hub.release(c)
	return nil
}

func (c *Context) detach() {
	c.mu.Lock()
	c.closed = true
	c.subs = map[int]func(Event){}
	c.mu.Unlock()
}

func (c *Context) deliver(ev Event) {
	c.mu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		c.mu.Lock()
		fn, ok := c.subs[id]
		c.mu.Unlock()
		if ok {
			fn(ev)
		}
	}
}
