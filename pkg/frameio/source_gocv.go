//go:build cgo

package frameio

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-lumacam/pkg/frame"
	"gocv.io/x/gocv"
)

const gocvAvailable = true

// GoCVSource captures frames through OpenCV's VideoCapture.
type GoCVSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	capture  *gocv.VideoCapture
	pool     *frame.Pool
	poolW    int
	poolH    int
	streamCh chan *frame.Frame
	stopCh   chan struct{}
	doneCh   chan struct{}

	delivered atomic.Int64
	dropped   atomic.Int64
	readFails atomic.Int64
}

// newGoCVSource creates a new OpenCV-backed source. The device is opened on Start.
func newGoCVSource(cfg Config, logger *slog.Logger) (Source, error) {
	s := &GoCVSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan *frame.Frame, cfg.BufferFrames),
	}

	logger.Info("gocv source created",
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
	)

	return s, nil
}

func (s *GoCVSource) open() (*gocv.VideoCapture, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	if idx, ok := s.cfg.DeviceIndex(); ok {
		capture, err = gocv.OpenVideoCapture(idx)
	} else {
		capture, err = gocv.OpenVideoCapture(s.cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", s.cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %s did not open", s.cfg.Device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(s.cfg.Framerate))
	return capture, nil
}

// Start opens the device and begins capture.
func (s *GoCVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := CheckAccess(s.cfg.Device); err != nil {
		return err
	}
	capture, err := s.open()
	if err != nil {
		return err
	}

	s.capture = capture
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.streamCh = make(chan *frame.Frame, s.cfg.BufferFrames)

	go s.captureLoop(ctx, capture, s.streamCh, s.stopCh, s.doneCh)

	s.logger.Info("gocv source started", "device", s.cfg.Device)
	return nil
}

func (s *GoCVSource) captureLoop(ctx context.Context, capture *gocv.VideoCapture, out chan *frame.Frame, stop, done chan struct{}) {
	defer close(done)
	defer close(out)

	img := gocv.NewMat()
	defer img.Close()
	yuv := gocv.NewMat()
	defer yuv.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if ok := capture.Read(&img); !ok || img.Empty() {
			if s.readFails.Add(1)%30 == 1 {
				s.logger.Warn("gocv source: frame read failed", "device", s.cfg.Device)
			}
			time.Sleep(s.cfg.FrameInterval())
			continue
		}

		f, err := s.convert(img, &yuv)
		if err != nil {
			s.logger.Warn("gocv source: convert failed", "error", err)
			continue
		}
		if offer(out, f) {
			s.delivered.Add(1)
		} else {
			s.dropped.Add(1)
		}
	}
}

// convert turns a BGR Mat into a pooled frame in the configured format.
func (s *GoCVSource) convert(img gocv.Mat, scratch *gocv.Mat) (*frame.Frame, error) {
	w, h := img.Cols(), img.Rows()
	// I420 needs even dimensions.
	w, h = w&^1, h&^1
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("frame too small: %dx%d", img.Cols(), img.Rows())
	}
	if w != img.Cols() || h != img.Rows() {
		img = img.Region(image.Rect(0, 0, w, h))
		defer img.Close()
	}

	code := gocv.ColorBGRToYUVI420
	if s.cfg.Format == frame.FormatLuma {
		code = gocv.ColorBGRToGray
	}
	gocv.CvtColor(img, scratch, code)
	data, err := scratch.DataPtrUint8()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.pool == nil || s.poolW != w || s.poolH != h {
		s.pool = frame.NewPool(w, h, s.cfg.Format)
		s.poolW, s.poolH = w, h
	}
	pool := s.pool
	s.mu.Unlock()

	return pool.Get(func(planes [][]byte) {
		off := 0
		for _, p := range planes {
			off += copy(p, data[off:])
		}
	}), nil
}

// Stop halts capture and closes the device.
func (s *GoCVSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	capture := s.capture
	s.capture = nil
	s.mu.Unlock()

	<-done
	if capture != nil {
		if err := capture.Close(); err != nil {
			return fmt.Errorf("close camera: %w", err)
		}
	}
	s.logger.Info("gocv source stopped", "device", s.cfg.Device)
	return nil
}

// Stream returns the frame channel.
func (s *GoCVSource) Stream() <-chan *frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the source configuration.
func (s *GoCVSource) Config() Config {
	return s.cfg
}

// Name returns "gocv".
func (s *GoCVSource) Name() string {
	return string(BackendGoCV)
}

// Close releases resources.
func (s *GoCVSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *GoCVSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	var outstanding int64
	if s.pool != nil {
		outstanding = s.pool.Outstanding()
	}
	s.mu.Unlock()

	return SourceStats{
		Delivered:   s.delivered.Load(),
		Dropped:     s.dropped.Load(),
		Outstanding: outstanding,
		Running:     running,
		Backend:     string(BackendGoCV),
	}
}

var _ SourceWithStats = (*GoCVSource)(nil)
