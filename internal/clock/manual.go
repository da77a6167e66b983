package clock

import (
	"sync"
	"time"
)

// Manual is a test clock. Now returns a settable instant, Sleep records the
// requested durations without blocking, and tickers fire only when told to.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	slept   []time.Duration
	tickers []*ManualTicker
}

func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(now time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) Sleep(d time.Duration) {
	m.mu.Lock()
	m.slept = append(m.slept, d)
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Slept returns the durations passed to Sleep, in order.
func (m *Manual) Slept() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.slept...)
}

func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &ManualTicker{ch: make(chan time.Time, 1), interval: d}
	m.tickers = append(m.tickers, t)
	return t
}

type ManualTicker struct {
	ch       chan time.Time
	interval time.Duration
	stopped  bool
}

func (t *ManualTicker) C() <-chan time.Time { return t.ch }
func (t *ManualTicker) Stop()               { t.stopped = true }

// Fire delivers one tick carrying the given instant.
func (t *ManualTicker) Fire(now time.Time) {
	if !t.stopped {
		t.ch <- now
	}
}
