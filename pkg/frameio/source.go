package frameio

import (
	"context"
	"io"

	"github.com/teslashibe/go-lumacam/pkg/frame"
)

// Source captures frames from a camera or generator.
type Source interface {
	// Start begins capture. Frames become available on Stream.
	Start(ctx context.Context) error

	// Stop halts capture and closes the stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Stream returns the channel frames are delivered on.
	// Every received frame must be closed by the receiver.
	Stream() <-chan *frame.Frame

	// Config returns the source configuration.
	Config() Config

	// Name returns the backend name (e.g., "gocv", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}

// SourceStats contains statistics about a frame source.
type SourceStats struct {
	// Delivered is the number of frames handed to the consumer.
	Delivered int64 `json:"delivered"`

	// Dropped is the number of frames released because the channel was full.
	Dropped int64 `json:"dropped"`

	// Outstanding is the number of delivered frames not yet released.
	Outstanding int64 `json:"outstanding"`

	// Running indicates if the source is currently capturing.
	Running bool `json:"running"`

	// Backend is the name of the source backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// offer hands f to the consumer or drops and releases it when the channel
// is full. It reports whether f was delivered.
func offer(ch chan<- *frame.Frame, f *frame.Frame) bool {
	select {
	case ch <- f:
		return true
	default:
		f.Close()
		return false
	}
}
