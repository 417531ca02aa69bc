//go:build !cgo

package frameio

import (
	"fmt"
	"log/slog"
)

const gocvAvailable = false

// newGoCVSource returns an error when built without cgo.
func newGoCVSource(cfg Config, logger *slog.Logger) (Source, error) {
	return nil, fmt.Errorf("gocv backend requires cgo and OpenCV")
}
