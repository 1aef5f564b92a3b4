// Package memstore is an in-process Backend. It can be told to fail reads or
// writes, which is how tests simulate disabled storage or a full quota.
package memstore

import (
	"errors"
	"maps"
	"sync"

	"github.com/idilsaglam/tada/internal/store"
)

// ErrQuota is returned by Set while FailWrites is on.
var ErrQuota = errors.New("memstore: quota exceeded")

// ErrDisabled is returned by every call while FailReads is on.
var ErrDisabled = errors.New("memstore: storage disabled")

type Store struct {
	mu         sync.Mutex
	data       map[string]string
	failReads  bool
	failWrites bool
	closed     bool
}

var _ store.Backend = (*Store)(nil)

func New() *Store { return &Store{data: map[string]string{}} }

// Seed returns a store preloaded with data.
func Seed(data map[string]string) *Store {
	s := New()
	maps.Copy(s.data, data)
	return s
}

// FailReads makes Get, Set and Remove return ErrDisabled.
func (s *Store) FailReads(on bool) {
	s.mu.Lock()
	s.failReads = on
	s.mu.Unlock()
}

// FailWrites makes Set return ErrQuota and Remove return ErrDisabled.
func (s *Store) FailWrites(on bool) {
	s.mu.Lock()
	s.failWrites = on
	s.mu.Unlock()
}

// Snapshot copies the current contents.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.data)
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(false); err != nil {
		return "", false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(false); err != nil {
		return err
	}
	if s.failWrites {
		return ErrQuota
	}
	s.data[key] = value
	return nil
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(true); err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) check(write bool) error {
	switch {
	case s.closed:
		return store.ErrClosed
	case s.failReads:
		return ErrDisabled
	case write && s.failWrites:
		return ErrDisabled
	}
	return nil
}
