package frameio

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/teslashibe/go-lumacam/pkg/frame"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.Width = 16
	cfg.Height = 8
	cfg.Framerate = 200
	return cfg
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	defer src.Close()

	ctx := context.Background()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Starting again should be a no-op
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping again should be a no-op
	if err := src.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestMockSource_StartAfterClose(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	src.Close()

	if err := src.Start(context.Background()); err == nil {
		t.Error("expected error starting a closed source")
	}
}

func TestMockSource_FlatFrames(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithLevel(200), WithFrameLimit(3))
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	count := 0
	for f := range src.Stream() {
		count++
		if f.PlaneCount() != 3 {
			t.Errorf("expected I420 frame with 3 planes, got %d", f.PlaneCount())
		}
		p, err := f.Plane(0)
		if err != nil {
			t.Fatalf("Plane(0) failed: %v", err)
		}
		for _, b := range p.Bytes() {
			if b != 200 {
				t.Fatalf("expected flat 200, got %d", b)
			}
		}
		f.Close()
	}

	if count == 0 {
		t.Fatal("expected at least one frame before the stream closed")
	}
	if st := src.Stats(); st.Outstanding != 0 {
		t.Errorf("expected 0 outstanding, got %d", st.Outstanding)
	}
}

func TestMockSource_Gradient(t *testing.T) {
	cfg := testConfig()
	cfg.Format = frame.FormatLuma
	src := NewMockSource(cfg, nil, WithPattern(PatternGradient), WithFrameLimit(1))
	defer src.Close()

	src.Start(context.Background())

	f, ok := <-src.Stream()
	if !ok {
		t.Fatal("stream closed without a frame")
	}
	defer f.Close()

	p, _ := f.Plane(0)
	row := p.Bytes()[:cfg.Width]
	if row[0] != 0 || row[cfg.Width-1] != 255 {
		t.Errorf("expected 0..255 ramp, got first=%d last=%d", row[0], row[cfg.Width-1])
	}
	if f.PlaneCount() != 1 {
		t.Errorf("expected luma-only frame, got %d planes", f.PlaneCount())
	}
}

func TestMockSource_OverrunReleasesDroppedFrames(t *testing.T) {
	cfg := testConfig()
	cfg.BufferFrames = 1
	src := NewMockSource(cfg, nil, WithFrameLimit(20))
	defer src.Close()

	src.Start(context.Background())

	// Don't read until the generator is done so frames overflow the channel.
	deadline := time.After(2 * time.Second)
	for src.Stats().Delivered+src.Stats().Dropped < 20 {
		select {
		case <-deadline:
			t.Fatal("generator did not finish")
		case <-time.After(5 * time.Millisecond):
		}
	}

	st := src.Stats()
	if st.Dropped == 0 {
		t.Error("expected dropped frames with a one-slot buffer")
	}
	if st.Outstanding != st.Delivered {
		t.Errorf("only delivered frames may be outstanding: delivered=%d outstanding=%d",
			st.Delivered, st.Outstanding)
	}

	for f := range src.Stream() {
		f.Close()
	}
	if out := src.Stats().Outstanding; out != 0 {
		t.Errorf("expected 0 outstanding after drain, got %d", out)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"zero width", func(c *Config) { c.Width = 0 }, false},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, false},
		{"zero buffer", func(c *Config) { c.BufferFrames = 0 }, false},
		{"bad format", func(c *Config) { c.Format = "rgb" }, false},
	}

	for _, tc := range tests {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestNewSource_Mock(t *testing.T) {
	src, err := NewSource(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	if src.Name() != "mock" {
		t.Errorf("expected mock backend, got %s", src.Name())
	}
}

func TestNewSource_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Framerate = -1
	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestCheckAccess(t *testing.T) {
	if err := CheckAccess("rtsp://camera.local/stream"); err != nil {
		t.Errorf("URLs should not be checked, got %v", err)
	}

	if runtime.GOOS != "linux" {
		t.Skip("device nodes are only checked on linux")
	}
	if got := DevicePath("3"); got != "/dev/video3" {
		t.Errorf("expected /dev/video3, got %s", got)
	}
	if err := CheckAccess("9999"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}
}
