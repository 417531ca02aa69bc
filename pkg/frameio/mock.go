package frameio

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-lumacam/pkg/frame"
)

// Pattern selects what the mock source draws into the luma plane.
type Pattern string

const (
	// PatternFlat fills every pixel with the configured level.
	PatternFlat Pattern = "flat"
	// PatternGradient ramps 0-255 left to right.
	PatternGradient Pattern = "gradient"
	// PatternNoise fills with uniform random values.
	PatternNoise Pattern = "noise"
	// PatternPulse fills with a level that sweeps up and down over time.
	PatternPulse Pattern = "pulse"
)

// MockSource generates synthetic frames for testing.
type MockSource struct {
	cfg    Config
	logger *slog.Logger
	pool   *frame.Pool

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan *frame.Frame
	stopCh   chan struct{}
	doneCh   chan struct{}

	delivered atomic.Int64
	dropped   atomic.Int64

	pattern Pattern
	level   byte
	limit   int
	rng     *rand.Rand
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithPattern selects the synthetic pattern.
func WithPattern(p Pattern) MockSourceOption {
	return func(m *MockSource) {
		m.pattern = p
	}
}

// WithLevel sets the luma value used by PatternFlat.
func WithLevel(level byte) MockSourceOption {
	return func(m *MockSource) {
		m.level = level
	}
}

// WithFrameLimit stops the source after n frames have been generated.
func WithFrameLimit(n int) MockSourceOption {
	return func(m *MockSource) {
		m.limit = n
	}
}

// NewMockSource creates a new mock frame source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:      cfg,
		logger:   logger,
		pool:     frame.NewPool(cfg.Width, cfg.Height, cfg.Format),
		streamCh: make(chan *frame.Frame, cfg.BufferFrames),
		pattern:  PatternFlat,
		level:    128,
		rng:      rand.New(rand.NewPCG(1, 2)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating frames.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.streamCh = make(chan *frame.Frame, m.cfg.BufferFrames)

	go m.generateLoop(ctx, m.streamCh, m.stopCh, m.doneCh)

	m.logger.Info("mock frame source started",
		"width", m.cfg.Width,
		"height", m.cfg.Height,
		"pattern", m.pattern,
	)

	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, out chan *frame.Frame, stop, done chan struct{}) {
	defer close(done)
	defer close(out)

	ticker := time.NewTicker(m.cfg.FrameInterval())
	defer ticker.Stop()

	generated := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			f := m.pool.Get(m.fill)
			if offer(out, f) {
				m.delivered.Add(1)
			} else {
				m.dropped.Add(1)
				m.logger.Debug("mock source: buffer full, dropping frame", "seq", f.Seq)
			}

			generated++
			if m.limit > 0 && generated >= m.limit {
				return
			}
		}
	}
}

func (m *MockSource) fill(planes [][]byte) {
	y := planes[0]
	switch m.pattern {
	case PatternGradient:
		w := m.cfg.Width
		for i := range y {
			y[i] = byte((i % w) * 255 / max(w-1, 1))
		}
	case PatternNoise:
		for i := range y {
			y[i] = byte(m.rng.UintN(256))
		}
	case PatternPulse:
		phase := int(time.Now().UnixMilli()/8) % 510
		if phase > 255 {
			phase = 510 - phase
		}
		for i := range y {
			y[i] = byte(phase)
		}
	default:
		for i := range y {
			y[i] = m.level
		}
	}
	for _, c := range planes[1:] {
		for i := range c {
			c[i] = 128
		}
	}
}

// Stop halts frame generation and waits for the generator to exit.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
	m.logger.Info("mock frame source stopped")
	return nil
}

// Stream returns the frame channel.
func (m *MockSource) Stream() <-chan *frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the source configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close releases resources.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		Delivered:   m.delivered.Load(),
		Dropped:     m.dropped.Load(),
		Outstanding: m.pool.Outstanding(),
		Running:     running,
		Backend:     string(BackendMock),
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)
