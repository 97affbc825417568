// Package clock provides the time source that stamps stored rows. The admin
// API can shift it to simulate a different "now".
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Adjustable wraps a base clock. After Set, Now returns the set instant plus
// the time elapsed on the base clock since Set was called, so simulated time
// keeps moving. Reset returns to the base clock.
type Adjustable struct {
	base Clock

	mu        sync.RWMutex
	simulated *time.Time
	setAt     time.Time
}

func NewAdjustable(base Clock) *Adjustable {
	if base == nil {
		base = System{}
	}
	return &Adjustable{base: base}
}

func (a *Adjustable) Now() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	now := a.base.Now()
	if a.simulated == nil {
		return now
	}
	return a.simulated.Add(now.Sub(a.setAt))
}

func (a *Adjustable) Set(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.simulated = &t
	a.setAt = a.base.Now()
}

func (a *Adjustable) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.simulated = nil
}

// Simulated reports whether a simulated time is active.
func (a *Adjustable) Simulated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.simulated != nil
}

// Manual is a clock that only moves when told to. Used in tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
