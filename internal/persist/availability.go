package persist

import (
	"sync/atomic"

	"github.com/idilsaglam/tada/internal/store"
)

const testKey = "__storage_test__"

// IsAvailable reports whether m accepts a write and a removal. The failing
// step is logged at warn level.
func IsAvailable(m store.Medium, opts ...Option) bool {
	o := buildOptions(opts)
	if err := m.Set(testKey, testKey); err != nil {
		o.logger.Warn("storage unavailable", "step", "write", "err", err)
		return false
	}
	if err := m.Remove(testKey); err != nil {
		o.logger.Warn("storage unavailable", "step", "remove", "err", err)
		return false
	}
	return true
}

// Availability is the last availability check for a medium. It reads false until
// the first Check completes.
type Availability struct {
	medium  store.Medium
	opts    []Option
	checked atomic.Bool
	ok      atomic.Bool
}

func NewAvailability(m store.Medium, opts ...Option) *Availability {
	return &Availability{medium: m, opts: opts}
}

// Check tests the medium and records the result.
func (a *Availability) Check() bool {
	ok := IsAvailable(a.medium, a.opts...)
	a.ok.Store(ok)
	a.checked.Store(true)
	return ok
}

// Status returns the last recorded result.
func (a *Availability) Status() bool { return a.ok.Load() }

// Checked reports whether any Check has completed.
func (a *Availability) Checked() bool { return a.checked.Load() }
