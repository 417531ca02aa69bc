package frameio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new frame source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend(cfg.Device, logger)
	}

	logger.Info("creating frame source",
		"backend", backend,
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"fps", cfg.Framerate,
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger, opts...), nil
	case BackendGoCV:
		return newGoCVSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend picks gocv when the device is reachable, mock otherwise.
// A failed access check is logged so a permission problem is not hidden
// behind synthetic frames.
func detectBestBackend(device string, logger *slog.Logger) Backend {
	if err := CheckAccess(device); err != nil {
		logger.Warn("camera not accessible, falling back to mock frames",
			"device", device,
			"error", err,
		)
		return BackendMock
	}
	if !gocvAvailable {
		logger.Info("gocv not built in, using mock frames", "device", device)
		return BackendMock
	}
	return BackendGoCV
}

// AvailableBackends returns the list of backends available in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if gocvAvailable {
		backends = append(backends, BackendGoCV)
	}
	return backends
}
