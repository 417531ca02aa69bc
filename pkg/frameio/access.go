package frameio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
)

var (
	// ErrPermissionDenied is returned when the camera device exists but the
	// process may not open it.
	ErrPermissionDenied = errors.New("frameio: camera permission denied")

	// ErrNoDevice is returned when the camera device does not exist.
	ErrNoDevice = errors.New("frameio: camera device not found")
)

// DevicePath maps a camera index to its device node on Linux.
// Non-numeric devices are returned unchanged.
func DevicePath(device string) string {
	if idx, err := strconv.Atoi(device); err == nil && idx >= 0 && runtime.GOOS == "linux" {
		return fmt.Sprintf("/dev/video%d", idx)
	}
	return device
}

// CheckAccess verifies the process can open the camera device.
// Stream URLs and platforms without device nodes are not checked.
func CheckAccess(device string) error {
	path := DevicePath(device)
	if !strings.HasPrefix(path, "/dev/") {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoDevice, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s (add the user to the video group)", ErrPermissionDenied, path)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	return f.Close()
}
