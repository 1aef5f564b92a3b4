package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/idilsaglam/tada/internal/store"
)

// JSON-backed storage. Single file holding one object of key -> raw string,
// human-readable and portable. No cross-process locking; fine for a local
// single-user tool. Other processes' writes are picked up through fsnotify.

const DefaultFileName = "tada.json"

type Store struct {
	path string

	mu     sync.Mutex
	seen   map[string]string // last content known to this process, per key
	closed bool
}

var (
	_ store.Backend = (*Store)(nil)
	_ store.Watcher = (*Store)(nil)
)

// Open prepares a store at path. The file is created lazily on first write.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonstore: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	s := &Store{path: abs}
	data, err := s.load()
	if err != nil {
		// keep going: reads will surface the same error and callers fall back
		data = map[string]string{}
	}
	s.seen = data
	return s, nil
}

// Path returns the absolute file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(b) == 0 {
		return map[string]string{}, nil
	}
	data := map[string]string{}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return data, nil
}

func (s *Store) save(data map[string]string) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tada-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, store.ErrClosed
	}
	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	data, err := s.load()
	if err != nil {
		return err
	}
	data[key] = value
	if err := s.save(data); err != nil {
		return err
	}
	s.seen[key] = value
	return nil
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		delete(s.seen, key)
		return nil
	}
	delete(data, key)
	if err := s.save(data); err != nil {
		return err
	}
	delete(s.seen, key)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Watch reports keys changed by other writers of the same file.
func (s *Store) Watch(stop <-chan struct{}, emit func(store.Event), warn func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()
	// Watch the directory: atomic renames replace the file's inode.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			for _, e := range s.diff() {
				emit(e)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			warn(fmt.Errorf("fsnotify: %w", err))
		}
	}
}

// diff reloads the file and returns one event per key whose content moved
// away from what this process last knew.
func (s *Store) diff() []store.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	data, err := s.load()
	if err != nil {
		// half-written or foreign content; wait for the next event
		return nil
	}
	var out []store.Event
	for k, v := range data {
		old, had := s.seen[k]
		if had && old == v {
			continue
		}
		ev := store.Event{Key: k, NewValue: &v}
		if had {
			ev.OldValue = &old
		}
		out = append(out, ev)
	}
	for k, old := range s.seen {
		if _, ok := data[k]; !ok {
			out = append(out, store.Event{Key: k, OldValue: &old})
		}
	}
	s.seen = data
	return out
}
