package luma

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the number of readings a Tracker keeps.
const DefaultWindow = 90

// Summary describes the recent luma readings.
type Summary struct {
	Count  int       `json:"count"`
	Last   float64   `json:"last"`
	Mean   float64   `json:"mean"`
	StdDev float64   `json:"stddev"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	At     time.Time `json:"at"`
}

// Tracker keeps a ring of recent readings. Observe satisfies Observer.
type Tracker struct {
	mu     sync.RWMutex
	ring   []float64
	next   int
	filled bool
	last   float64
	at     time.Time

	// OnReading is called after each reading is recorded.
	OnReading func(luma float64)
}

// NewTracker creates a tracker over the last window readings.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{ring: make([]float64, window)}
}

// Observe records a reading.
func (t *Tracker) Observe(luma float64) error {
	t.mu.Lock()
	t.ring[t.next] = luma
	t.next++
	if t.next == len(t.ring) {
		t.next = 0
		t.filled = true
	}
	t.last = luma
	t.at = time.Now()
	cb := t.OnReading
	t.mu.Unlock()

	if cb != nil {
		cb(luma)
	}
	return nil
}

// Last returns the most recent reading and whether one exists.
func (t *Tracker) Last() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.filled || t.next > 0
}

// Summary returns statistics over the window.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	n := t.next
	if t.filled {
		n = len(t.ring)
	}
	values := make([]float64, n)
	copy(values, t.ring[:n])
	s := Summary{Count: n, Last: t.last, At: t.at}
	t.mu.RUnlock()

	if n == 0 {
		return s
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	s.Mean = mean
	s.StdDev = std
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	return s
}
