// Package frame defines the image handle passed between frame sources,
// analyzers and capture sinks.
//
// A Frame is owned by exactly one consumer at a time and must be closed
// exactly once. Closing hands its buffers back to the producer; a frame
// that is never closed stalls the producer's pool.
package frame

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrReleased is returned when a frame is used or closed after release.
	ErrReleased = errors.New("frame: already released")

	// ErrNoPlane is returned when a plane index is out of range.
	ErrNoPlane = errors.New("frame: plane not present")
)

// Format describes the plane layout of a frame.
type Format string

const (
	// FormatLuma is a single 8-bit luminance plane.
	FormatLuma Format = "luma"
	// FormatI420 is planar YUV 4:2:0 (Y, U, V).
	FormatI420 Format = "i420"
)

// ReleaseFunc hands a frame's planes back to whoever produced them.
type ReleaseFunc func(f *Frame)

// Frame is one captured image with one or more pixel planes.
type Frame struct {
	Width     int
	Height    int
	Format    Format
	Seq       uint64
	Timestamp time.Time

	planes   []*Plane
	release  ReleaseFunc
	released atomic.Bool
	mu       sync.Mutex
}

// New builds a luma-only frame over data. The frame takes ownership of data.
func New(width, height int, data []byte, release ReleaseFunc) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Format:    FormatLuma,
		Timestamp: time.Now(),
		planes:    []*Plane{NewPlane(data, width)},
		release:   release,
	}
}

// NewYUV420 builds an I420 frame from its three planes.
func NewYUV420(width, height int, y, u, v []byte, release ReleaseFunc) *Frame {
	cw := (width + 1) / 2
	return &Frame{
		Width:     width,
		Height:    height,
		Format:    FormatI420,
		Timestamp: time.Now(),
		planes:    []*Plane{NewPlane(y, width), NewPlane(u, cw), NewPlane(v, cw)},
		release:   release,
	}
}

// FromPlanes builds a frame over planes produced elsewhere.
func FromPlanes(width, height int, format Format, planes []*Plane, release ReleaseFunc) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Format:    format,
		Timestamp: time.Now(),
		planes:    planes,
		release:   release,
	}
}

// Plane returns plane i. Plane 0 is luminance.
func (f *Frame) Plane(i int) (*Plane, error) {
	if f.released.Load() {
		return nil, ErrReleased
	}
	if i < 0 || i >= len(f.planes) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoPlane, i, len(f.planes))
	}
	return f.planes[i], nil
}

// PlaneCount returns the number of planes.
func (f *Frame) PlaneCount() int {
	return len(f.planes)
}

// Released reports whether Close has run.
func (f *Frame) Released() bool {
	return f.released.Load()
}

// Close releases the frame. Only the first call runs the release func.
func (f *Frame) Close() error {
	if !f.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	f.mu.Lock()
	release := f.release
	f.release = nil
	f.mu.Unlock()

	if release != nil {
		release(f)
	}
	return nil
}

// Clone returns a deep copy that is independent of the original's release.
// The copy has no release func of its own.
func (f *Frame) Clone() (*Frame, error) {
	if f.released.Load() {
		return nil, ErrReleased
	}
	planes := make([]*Plane, len(f.planes))
	for i, p := range f.planes {
		data := make([]byte, len(p.data))
		copy(data, p.data)
		planes[i] = NewPlane(data, p.Stride)
	}
	return &Frame{
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		planes:    planes,
	}, nil
}
