// Package frameio provides camera frame sources.
//
// This package supports multiple backends:
//   - gocv (OpenCV VideoCapture) - USB/V4L2 and built-in cameras
//   - Mock - synthetic frames for CI and development without hardware
//
// Every source delivers frames on a bounded channel. When the consumer
// falls behind, the source drops the newest frame and releases it, so a
// slow analyzer never stalls capture.
package frameio

import (
	"fmt"
	"strconv"
	"time"

	"github.com/teslashibe/go-lumacam/pkg/frame"
)

// Backend represents the frame source backend type.
type Backend string

const (
	// BackendAuto selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendGoCV captures through OpenCV.
	BackendGoCV Backend = "gocv"
	// BackendMock generates synthetic frames.
	BackendMock Backend = "mock"
)

// Config holds frame source configuration.
type Config struct {
	// Backend specifies which source backend to use.
	Backend Backend `yaml:"backend" json:"backend"`

	// Device is the camera index ("0") or a device path / URL.
	Device string `yaml:"device" json:"device"`

	Width     int `yaml:"width" json:"width"`
	Height    int `yaml:"height" json:"height"`
	Framerate int `yaml:"framerate" json:"framerate"`

	// Format is the plane layout of delivered frames.
	Format frame.Format `yaml:"format" json:"format"`

	// BufferFrames is the capacity of the frame channel.
	// Default: 2 (keep latest, drop on overrun)
	BufferFrames int `yaml:"buffer_frames" json:"buffer_frames"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAuto,
		Device:       "0",
		Width:        640,
		Height:       480,
		Framerate:    30,
		Format:       frame.FormatI420,
		BufferFrames: 2,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Framerate <= 0 {
		return fmt.Errorf("framerate must be positive, got %d", c.Framerate)
	}
	if c.BufferFrames <= 0 {
		return fmt.Errorf("buffer_frames must be positive, got %d", c.BufferFrames)
	}
	switch c.Format {
	case frame.FormatLuma, frame.FormatI420:
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	return nil
}

// FrameInterval returns the time between frames at the configured rate.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Framerate)
}

// DeviceIndex returns the numeric camera index if Device is one.
func (c *Config) DeviceIndex() (int, bool) {
	idx, err := strconv.Atoi(c.Device)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
