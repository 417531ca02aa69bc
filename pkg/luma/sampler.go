// Package luma computes per-frame brightness from the luminance plane.
package luma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-lumacam/pkg/frame"
)

// ErrNoSamples is returned for frames whose luma plane is empty.
// The observer is not called for those frames.
var ErrNoSamples = errors.New("luma: no samples")

// Observer receives the mean brightness of one frame (0-255).
type Observer func(luma float64) error

// Mean returns the arithmetic mean of data read as unsigned 8-bit samples.
func Mean(data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, ErrNoSamples
	}
	var sum uint64
	for _, b := range data {
		sum += uint64(b)
	}
	return float64(sum) / float64(len(data)), nil
}

// Stats counts what the sampler has seen.
type Stats struct {
	Analyzed       int64 `json:"analyzed"`
	Empty          int64 `json:"empty"`
	ObserverErrors int64 `json:"observer_errors"`
	Failed         int64 `json:"failed"`
}

// Sampler analyzes frames one at a time and reports their mean luma.
type Sampler struct {
	observer Observer
	logger   *slog.Logger

	analyzed       atomic.Int64
	empty          atomic.Int64
	observerErrors atomic.Int64
	failed         atomic.Int64
}

// NewSampler creates a sampler that reports to observer.
func NewSampler(observer Observer, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{observer: observer, logger: logger}
}

// Analyze computes the luma of f, notifies the observer on the calling
// goroutine, and releases f. f is released on every return path, including
// an observer panic, which is re-raised after release.
func (s *Sampler) Analyze(f *frame.Frame) (err error) {
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release frame %d: %w", f.Seq, cerr)
		}
	}()

	plane, err := f.Plane(0)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("analyze frame %d: %w", f.Seq, err)
	}

	plane.Rewind()
	mean, err := Mean(plane.ReadAll())
	if err != nil {
		s.empty.Add(1)
		s.logger.Debug("skipping empty frame", "seq", f.Seq)
		return err
	}
	s.analyzed.Add(1)

	if s.observer == nil {
		return nil
	}
	if err := s.observer(mean); err != nil {
		s.observerErrors.Add(1)
		return fmt.Errorf("observer: %w", err)
	}
	return nil
}

// Run consumes frames until the channel is closed or ctx is done.
// It must be the only reader of frames. On cancellation any frames left in
// the channel are drained and released without analysis.
func (s *Sampler) Run(ctx context.Context, frames <-chan *frame.Frame) error {
	for {
		select {
		case <-ctx.Done():
			s.drain(frames)
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			if err := s.Analyze(f); err != nil && !errors.Is(err, ErrNoSamples) {
				s.logger.Warn("luma analysis failed", "seq", f.Seq, "error", err)
			}
		}
	}
}

func (s *Sampler) drain(frames <-chan *frame.Frame) {
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := f.Close(); err != nil {
				s.logger.Debug("drained frame already released", "seq", f.Seq, "error", err)
			}
		default:
			return
		}
	}
}

// Stats returns a snapshot of sampler counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Analyzed:       s.analyzed.Load(),
		Empty:          s.empty.Load(),
		ObserverErrors: s.observerErrors.Load(),
		Failed:         s.failed.Load(),
	}
}
