// Package pipeline wires a camera session to luma analysis, live preview
// and still capture.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-lumacam/pkg/camera"
	"github.com/teslashibe/go-lumacam/pkg/capture"
	"github.com/teslashibe/go-lumacam/pkg/frame"
	"github.com/teslashibe/go-lumacam/pkg/frameio"
	"github.com/teslashibe/go-lumacam/pkg/luma"
	"github.com/teslashibe/go-lumacam/pkg/video"
)

// Config holds pipeline tuning.
type Config struct {
	PreviewWidth   int // Max preview width in pixels (0 disables preview)
	PreviewQuality int // Preview JPEG quality
	PreviewFPS     int // Max preview frames per second
	TrackerWindow  int // Luma readings kept for the summary
}

// DefaultConfig returns a 320px, 10 FPS preview and a 3 second luma window.
func DefaultConfig() Config {
	return Config{
		PreviewWidth:   320,
		PreviewQuality: 60,
		PreviewFPS:     10,
		TrackerWindow:  luma.DefaultWindow,
	}
}

// Status is a snapshot of the running pipeline.
type Status struct {
	Bound   bool                `json:"bound"`
	Camera  camera.Config       `json:"camera"`
	Luma    luma.Summary        `json:"luma"`
	Sampler luma.Stats          `json:"sampler"`
	Source  frameio.SourceStats `json:"source"`
}

// Pipeline owns the camera session and its use cases.
type Pipeline struct {
	cfg      Config
	provider *camera.Provider
	manager  *camera.Manager
	capturer *capture.Capturer
	sampler  *luma.Sampler
	tracker  *luma.Tracker
	logger   *slog.Logger

	// sessionMu orders Start, Stop and rebinds so Stop always wins
	// against a rebind already in flight.
	sessionMu sync.Mutex
	ctx       context.Context
	started   bool

	mu     sync.Mutex
	latest *frame.Frame

	// OnPreview receives downscaled JPEG frames.
	OnPreview func(jpeg []byte)
}

// New creates a pipeline. The manager's OnConfigChange is taken over so
// that every config change rebinds the session.
func New(cfg Config, provider *camera.Provider, manager *camera.Manager, capturer *capture.Capturer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		cfg:      cfg,
		provider: provider,
		manager:  manager,
		capturer: capturer,
		tracker:  luma.NewTracker(cfg.TrackerWindow),
		logger:   logger,
	}
	p.sampler = luma.NewSampler(p.tracker.Observe, logger)
	manager.OnConfigChange = p.rebind
	return p
}

// Tracker returns the luma tracker. Set its OnReading to stream readings.
func (p *Pipeline) Tracker() *luma.Tracker {
	return p.tracker
}

// Manager returns the camera config manager.
func (p *Pipeline) Manager() *camera.Manager {
	return p.manager
}

// Start binds the session with the manager's current config.
func (p *Pipeline) Start(ctx context.Context) error {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if p.started {
		return nil
	}
	p.ctx = ctx
	p.started = true
	if err := p.bind(p.manager.GetConfig()); err != nil {
		p.started = false
		return err
	}
	return nil
}

// Stop unbinds the session and drops the held still frame.
func (p *Pipeline) Stop() {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if !p.started {
		return
	}
	p.started = false
	p.provider.UnbindAll()
	p.setLatest(nil)
}

func (p *Pipeline) rebind(cfg camera.Config) error {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if !p.started {
		return nil
	}
	return p.bind(cfg)
}

func (p *Pipeline) bind(cfg camera.Config) error {
	if err := p.provider.Bind(p.ctx, cfg, p.useCases()...); err != nil {
		p.logger.Error("use case binding failed", "error", err)
		return err
	}
	return nil
}

func (p *Pipeline) useCases() []camera.UseCase {
	cases := []camera.UseCase{
		camera.NewUseCase("analysis", p.sampler.Run),
		camera.NewUseCase("still", p.runStill),
	}
	if p.cfg.PreviewWidth > 0 && p.cfg.PreviewFPS > 0 {
		cases = append(cases, camera.NewUseCase("preview", p.runPreview))
	}
	return cases
}

// runStill keeps the most recent frame for Capture.
func (p *Pipeline) runStill(ctx context.Context, frames <-chan *frame.Frame) error {
	for f := range frames {
		p.setLatest(f)
	}
	return nil
}

func (p *Pipeline) setLatest(f *frame.Frame) {
	p.mu.Lock()
	old := p.latest
	p.latest = f
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (p *Pipeline) runPreview(ctx context.Context, frames <-chan *frame.Frame) error {
	interval := time.Second / time.Duration(p.cfg.PreviewFPS)
	var last time.Time

	for f := range frames {
		if time.Since(last) < interval || p.OnPreview == nil {
			f.Close()
			continue
		}
		last = time.Now()

		data, err := video.PreviewJPEG(f, p.cfg.PreviewWidth, p.cfg.PreviewQuality)
		f.Close()
		if err != nil {
			p.logger.Debug("preview encode failed", "error", err)
			continue
		}
		p.OnPreview(data)
	}
	return nil
}

// Capture saves the most recent frame as a still image.
func (p *Pipeline) Capture(ctx context.Context) (capture.Output, error) {
	p.mu.Lock()
	var (
		snap *frame.Frame
		err  error
	)
	if p.latest != nil {
		snap, err = p.latest.Clone()
	}
	p.mu.Unlock()

	if snap == nil {
		if err != nil && !errors.Is(err, frame.ErrReleased) {
			return capture.Output{}, err
		}
		return capture.Output{}, capture.ErrNoFrame
	}

	cfg, err := p.provider.Bound()
	if err != nil {
		cfg = p.manager.GetConfig()
	}
	reading, _ := p.tracker.Last()
	meta := capture.Meta{
		Lens:       string(cfg.Lens),
		FlashMode:  string(cfg.Flash),
		FlashFired: cfg.FlashFires(reading),
		Luma:       reading,
	}

	out, err := p.capturer.TakePhoto(ctx, snap, meta)
	if err != nil {
		return capture.Output{}, fmt.Errorf("take photo: %w", err)
	}
	return out, nil
}

// Status returns a snapshot of the session and analysis state.
func (p *Pipeline) Status() Status {
	st := Status{
		Camera:  p.manager.GetConfig(),
		Luma:    p.tracker.Summary(),
		Sampler: p.sampler.Stats(),
	}
	if _, err := p.provider.Bound(); err == nil {
		st.Bound = true
	}
	if src, ok := p.provider.SourceStats(); ok {
		st.Source = src
	}
	return st
}
