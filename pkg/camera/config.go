// Package camera provides the capture session configuration and binding.
//
// A Config is a value: toggling the lens or flash builds a new Config and
// the session is rebound with it. Nothing reads mutable globals.
package camera

import "fmt"

// Lens selects which camera the session binds to.
type Lens string

const (
	LensBack  Lens = "back"
	LensFront Lens = "front"
)

// FlashMode controls the flash for still captures.
type FlashMode string

const (
	FlashOff  FlashMode = "off"
	FlashOn   FlashMode = "on"
	FlashAuto FlashMode = "auto"
)

// Config holds all camera session parameters.
type Config struct {
	// === Selection ===
	Lens  Lens      `json:"lens"`
	Flash FlashMode `json:"flash"`

	// Devices maps each lens to a capture device ("0", "/dev/video2", URL).
	Devices map[Lens]string `json:"devices"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// AutoFlashThreshold is the mean luma below which FlashAuto fires.
	AutoFlashThreshold float64 `json:"auto_flash_threshold"`
}

// Capability limits.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the back camera at 640x480 with flash off.
func DefaultConfig() Config {
	return Config{
		Lens:  LensBack,
		Flash: FlashOff,
		Devices: map[Lens]string{
			LensBack:  "0",
			LensFront: "1",
		},
		Width:              640,
		Height:             480,
		Framerate:          30,
		Quality:            85,
		AutoFlashThreshold: 50,
	}
}

// Device returns the capture device for the selected lens.
func (c Config) Device() string {
	if d, ok := c.Devices[c.Lens]; ok {
		return d
	}
	return "0"
}

// WithLens returns a copy of c using lens.
func (c Config) WithLens(lens Lens) Config {
	c.Devices = cloneDevices(c.Devices)
	c.Lens = lens
	return c
}

// WithFlash returns a copy of c using mode.
func (c Config) WithFlash(mode FlashMode) Config {
	c.Devices = cloneDevices(c.Devices)
	c.Flash = mode
	return c
}

// ToggleLens returns a copy of c with the other lens selected.
func (c Config) ToggleLens() Config {
	if c.Lens == LensFront {
		return c.WithLens(LensBack)
	}
	return c.WithLens(LensFront)
}

// NextFlash returns a copy of c with the flash mode advanced off -> on -> auto -> off.
func (c Config) NextFlash() Config {
	switch c.Flash {
	case FlashOff:
		return c.WithFlash(FlashOn)
	case FlashOn:
		return c.WithFlash(FlashAuto)
	default:
		return c.WithFlash(FlashOff)
	}
}

// FlashFires reports whether a still capture at the given scene luma
// should be marked as flash-fired.
func (c Config) FlashFires(luma float64) bool {
	switch c.Flash {
	case FlashOn:
		return true
	case FlashAuto:
		return luma < c.AutoFlashThreshold
	default:
		return false
	}
}

func cloneDevices(m map[Lens]string) map[Lens]string {
	if m == nil {
		return nil
	}
	out := make(map[Lens]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Lens != LensBack && c.Lens != LensFront {
		errors = append(errors, "lens must be back or front")
	}
	switch c.Flash {
	case FlashOff, FlashOn, FlashAuto:
	default:
		errors = append(errors, "flash must be off, on, or auto")
	}

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.AutoFlashThreshold < 0 || c.AutoFlashThreshold > 255 {
		errors = append(errors, "auto_flash_threshold must be between 0 and 255")
	}

	return errors
}

// Capabilities returns the supported option values.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"lenses":        []Lens{LensBack, LensFront},
		"flash_modes":   []FlashMode{FlashOff, FlashOn, FlashAuto},
	}
}
