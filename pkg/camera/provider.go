package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-lumacam/pkg/async"
	"github.com/teslashibe/go-lumacam/pkg/frame"
	"github.com/teslashibe/go-lumacam/pkg/frameio"
)

// ErrNotBound is returned when no session is bound.
var ErrNotBound = errors.New("camera: no session bound")

// UseCase consumes frames from a bound session. Run owns every frame it
// receives and returns once frames is closed.
type UseCase interface {
	Name() string
	Run(ctx context.Context, frames <-chan *frame.Frame) error
}

type useCaseFunc struct {
	name string
	fn   func(ctx context.Context, frames <-chan *frame.Frame) error
}

func (u useCaseFunc) Name() string { return u.name }

func (u useCaseFunc) Run(ctx context.Context, frames <-chan *frame.Frame) error {
	return u.fn(ctx, frames)
}

// NewUseCase adapts fn as a named use case.
func NewUseCase(name string, fn func(ctx context.Context, frames <-chan *frame.Frame) error) UseCase {
	return useCaseFunc{name: name, fn: fn}
}

// Opener creates a frame source for a source configuration.
type Opener func(cfg frameio.Config) (frameio.Source, error)

// Provider binds use cases to one camera at a time.
type Provider struct {
	open   Opener
	base   frameio.Config
	logger *slog.Logger

	// bindMu serializes Bind and UnbindAll so at most one session runs.
	bindMu sync.Mutex

	mu      sync.Mutex
	session *session
}

type session struct {
	cfg     Config
	source  frameio.Source
	cancel  context.CancelFunc
	chans   []chan *frame.Frame
	fanDone chan struct{}
	ucWG    sync.WaitGroup
}

// GetProvider initializes a provider in the background. The result settles
// once a probe source has been created and closed with the base config.
func GetProvider(ctx context.Context, open Opener, base frameio.Config, logger *slog.Logger) *async.Result[*Provider] {
	if logger == nil {
		logger = slog.Default()
	}
	return async.Go(func() (*Provider, error) {
		if err := base.Validate(); err != nil {
			return nil, fmt.Errorf("camera provider: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probe, err := open(base)
		if err != nil {
			return nil, fmt.Errorf("camera provider: probe source: %w", err)
		}
		if err := probe.Close(); err != nil {
			return nil, fmt.Errorf("camera provider: close probe: %w", err)
		}
		logger.Info("camera provider ready", "backend", probe.Name())
		return &Provider{open: open, base: base, logger: logger}, nil
	})
}

// SourceConfig maps a session config onto the provider's source config.
func (p *Provider) SourceConfig(cfg Config) frameio.Config {
	sc := p.base
	sc.Device = cfg.Device()
	sc.Width = cfg.Width
	sc.Height = cfg.Height
	sc.Framerate = cfg.Framerate
	return sc
}

// Bind unbinds any current session, then opens a source for cfg and fans
// its frames out to the use cases. Each use case has a one-slot channel;
// a slow use case misses frames rather than stalling the others.
func (p *Provider) Bind(ctx context.Context, cfg Config, useCases ...UseCase) error {
	p.bindMu.Lock()
	defer p.bindMu.Unlock()

	p.unbind()

	src, err := p.open(p.SourceConfig(cfg))
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	srcCtx, cancel := context.WithCancel(ctx)
	if err := src.Start(srcCtx); err != nil {
		cancel()
		src.Close()
		return fmt.Errorf("start source: %w", err)
	}

	s := &session{
		cfg:     cfg,
		source:  src,
		cancel:  cancel,
		fanDone: make(chan struct{}),
	}
	for _, uc := range useCases {
		ch := make(chan *frame.Frame, 1)
		s.chans = append(s.chans, ch)
		s.ucWG.Add(1)
		go func(uc UseCase, ch chan *frame.Frame) {
			defer s.ucWG.Done()
			if err := uc.Run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn("use case stopped", "use_case", uc.Name(), "error", err)
			}
		}(uc, ch)
	}
	go p.fanOut(s)

	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	p.logger.Info("camera bound",
		"lens", cfg.Lens,
		"flash", cfg.Flash,
		"device", cfg.Device(),
		"use_cases", len(useCases),
	)
	return nil
}

func (p *Provider) fanOut(s *session) {
	defer close(s.fanDone)
	defer func() {
		for _, ch := range s.chans {
			close(ch)
		}
	}()

	for f := range s.source.Stream() {
		last := len(s.chans) - 1
		if last < 0 {
			f.Close()
			continue
		}
		for i, ch := range s.chans {
			out := f
			if i < last {
				c, err := f.Clone()
				if err != nil {
					continue
				}
				out = c
			}
			select {
			case ch <- out:
			default:
				out.Close()
			}
		}
	}
}

// UnbindAll stops the current session, waits for its use cases to finish
// and releases any frames they left behind.
func (p *Provider) UnbindAll() {
	p.bindMu.Lock()
	defer p.bindMu.Unlock()
	p.unbind()
}

func (p *Provider) unbind() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s == nil {
		return
	}

	s.cancel()
	if err := s.source.Stop(); err != nil {
		p.logger.Warn("source stop failed", "error", err)
	}
	<-s.fanDone
	s.ucWG.Wait()
	for _, ch := range s.chans {
		for f := range ch {
			f.Close()
		}
	}
	if err := s.source.Close(); err != nil {
		p.logger.Warn("source close failed", "error", err)
	}
	p.logger.Info("camera unbound", "lens", s.cfg.Lens)
}

// Bound returns the config of the current session.
func (p *Provider) Bound() (Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return Config{}, ErrNotBound
	}
	return p.session.cfg, nil
}

// SourceStats returns stats of the bound source when it reports them.
func (p *Provider) SourceStats() (frameio.SourceStats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return frameio.SourceStats{}, false
	}
	ws, ok := p.session.source.(frameio.SourceWithStats)
	if !ok {
		return frameio.SourceStats{}, false
	}
	return ws.Stats(), true
}
