// Package clock provides a time source seam so that expiry and
// grace-period logic can be tested deterministically.
//
// Production code uses System(); tests use a Fixed clock advanced manually.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by all expiry and grace-period comparisons.
type Clock interface {
	Now() time.Time
}

// systemClock reads the real wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by time.Now (UTC).
func System() Clock {
	return systemClock{}
}

// Fixed is a manually-controlled Clock for tests.
// All methods are safe for concurrent use.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a Fixed clock set to the given instant.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

// Now returns the current fixed instant.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the clock to the given instant.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
