package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-lumacam/pkg/frame"
	"github.com/teslashibe/go-lumacam/pkg/frameio"
)

type trackingOpener struct {
	mu      sync.Mutex
	sources []*frameio.MockSource
	devices []string
}

func (o *trackingOpener) open(cfg frameio.Config) (frameio.Source, error) {
	src := frameio.NewMockSource(cfg, nil)
	o.mu.Lock()
	o.sources = append(o.sources, src)
	o.devices = append(o.devices, cfg.Device)
	o.mu.Unlock()
	return src, nil
}

func baseSourceConfig() frameio.Config {
	cfg := frameio.DefaultConfig()
	cfg.Backend = frameio.BackendMock
	cfg.Format = frame.FormatLuma
	return cfg
}

func waitProvider(t *testing.T, o *trackingOpener) *Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p, err := GetProvider(ctx, o.open, baseSourceConfig(), nil).Wait(ctx)
	if err != nil {
		t.Fatalf("GetProvider failed: %v", err)
	}
	return p
}

func countingUseCase(name string, n *atomic.Int64) UseCase {
	return NewUseCase(name, func(ctx context.Context, frames <-chan *frame.Frame) error {
		for f := range frames {
			n.Add(1)
			f.Close()
		}
		return nil
	})
}

func TestGetProvider_ProbeFailure(t *testing.T) {
	ctx := context.Background()
	failing := func(frameio.Config) (frameio.Source, error) {
		return nil, errors.New("no camera")
	}

	_, err := GetProvider(ctx, failing, baseSourceConfig(), nil).Wait(ctx)
	if err == nil {
		t.Fatal("expected provider init to fail")
	}
}

func TestProvider_BindFansOut(t *testing.T) {
	o := &trackingOpener{}
	p := waitProvider(t, o)

	cfg := LegacyConfig()
	cfg.Framerate = 100

	var a, b atomic.Int64
	if err := p.Bind(context.Background(), cfg, countingUseCase("a", &a), countingUseCase("b", &b)); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for (a.Load() < 3 || b.Load() < 3) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.Load() < 3 || b.Load() < 3 {
		t.Fatalf("expected both use cases to receive frames, got a=%d b=%d", a.Load(), b.Load())
	}

	bound, err := p.Bound()
	if err != nil || bound.Width != 320 {
		t.Errorf("expected bound 320 wide config, got %+v, %v", bound, err)
	}

	p.UnbindAll()

	if _, err := p.Bound(); !errors.Is(err, ErrNotBound) {
		t.Errorf("expected ErrNotBound after unbind, got %v", err)
	}
	src := o.sources[len(o.sources)-1]
	if out := src.Stats().Outstanding; out != 0 {
		t.Errorf("expected all frames released after unbind, %d outstanding", out)
	}
}

func TestProvider_RebindSwitchesDevice(t *testing.T) {
	o := &trackingOpener{}
	p := waitProvider(t, o)
	defer p.UnbindAll()

	ctx := context.Background()
	cfg := DefaultConfig()

	if err := p.Bind(ctx, cfg); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if err := p.Bind(ctx, cfg.ToggleLens()); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// probe + two binds
	if len(o.devices) != 3 {
		t.Fatalf("expected 3 opened sources, got %d", len(o.devices))
	}
	if o.devices[1] != "0" || o.devices[2] != "1" {
		t.Errorf("expected devices 0 then 1, got %v", o.devices[1:])
	}
	if st := o.sources[1].Stats(); st.Running {
		t.Error("first session source should be stopped after rebind")
	}
}

func TestProvider_ConcurrentBindKeepsOneSession(t *testing.T) {
	o := &trackingOpener{}
	p := waitProvider(t, o)

	cfg := LegacyConfig()
	cfg.Framerate = 100

	var active, maxActive atomic.Int64
	analysis := NewUseCase("analysis", func(ctx context.Context, frames <-chan *frame.Frame) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		for f := range frames {
			f.Close()
		}
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := cfg
			if i%2 == 1 {
				c = cfg.ToggleLens()
			}
			if err := p.Bind(context.Background(), c, analysis); err != nil {
				t.Errorf("Bind %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	p.UnbindAll()

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, src := range o.sources {
		st := src.Stats()
		if st.Running {
			t.Errorf("source %d still running after UnbindAll", i)
		}
		if st.Outstanding != 0 {
			t.Errorf("source %d leaked %d frames", i, st.Outstanding)
		}
	}
	if n := active.Load(); n != 0 {
		t.Errorf("expected no active analysis after UnbindAll, got %d", n)
	}
	if m := maxActive.Load(); m > 1 {
		t.Errorf("expected at most one concurrent analysis, got %d", m)
	}
}
