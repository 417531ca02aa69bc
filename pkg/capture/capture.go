// Package capture saves still images from the camera to disk.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-lumacam/pkg/frame"
	"github.com/teslashibe/go-lumacam/pkg/video"
)

// ErrNoFrame is returned when a capture is requested before any frame.
var ErrNoFrame = errors.New("capture: no frame available")

// FilenameLayout is the timestamp part of capture file names. The
// millisecond suffix is appended separately as "-SSS".
const FilenameLayout = "2006-01-02-15-04-05"

// Meta describes the session state at capture time.
type Meta struct {
	Lens       string  `json:"lens"`
	FlashMode  string  `json:"flash_mode"`
	FlashFired bool    `json:"flash_fired"`
	Luma       float64 `json:"luma"`
}

// Output describes a saved capture.
type Output struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	URI     string    `json:"uri"`
	Size    int       `json:"size"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	TakenAt time.Time `json:"taken_at"`
	Meta    Meta      `json:"meta"`
}

// Capturer writes JPEG captures into one directory.
type Capturer struct {
	dir     string
	quality int
	store   *Store
	logger  *slog.Logger

	now func() time.Time
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithStore records every capture in s.
func WithStore(s *Store) Option {
	return func(c *Capturer) {
		c.store = s
	}
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(c *Capturer) {
		c.now = now
	}
}

// NewCapturer creates a capturer writing to dir at the given JPEG quality.
func NewCapturer(dir string, quality int, logger *slog.Logger, opts ...Option) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Capturer{
		dir:     dir,
		quality: quality,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the output directory.
func (c *Capturer) Dir() string {
	return c.dir
}

// FileName returns the capture file name for t, e.g. 2024-03-01-13-45-10-042.jpg.
func FileName(t time.Time) string {
	return fmt.Sprintf("%s-%03d.jpg", t.Format(FilenameLayout), t.Nanosecond()/int(time.Millisecond))
}

// TakePhoto encodes f as JPEG and saves it. f is released on every path.
func (c *Capturer) TakePhoto(ctx context.Context, f *frame.Frame, meta Meta) (Output, error) {
	if f == nil {
		return Output{}, ErrNoFrame
	}
	defer f.Close()

	if f.Released() {
		return Output{}, ErrNoFrame
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	data, err := video.EncodeJPEG(f, c.quality)
	if err != nil {
		c.logger.Error("photo capture failed", "error", err)
		return Output{}, fmt.Errorf("encode capture: %w", err)
	}

	takenAt := c.now()
	path, err := c.writeUnique(takenAt, data)
	if err != nil {
		c.logger.Error("photo capture failed", "error", err)
		return Output{}, err
	}

	out := Output{
		ID:      uuid.NewString(),
		Path:    path,
		URI:     (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(),
		Size:    len(data),
		Width:   f.Width,
		Height:  f.Height,
		TakenAt: takenAt,
		Meta:    meta,
	}

	if c.store != nil {
		if err := c.store.Record(ctx, out); err != nil {
			// The file is on disk; the index can be rebuilt.
			c.logger.Warn("capture not indexed", "path", path, "error", err)
		}
	}

	c.logger.Info("photo capture succeeded", "uri", out.URI, "bytes", out.Size, "flash", meta.FlashFired)
	return out, nil
}

// writeUnique writes data under the timestamped name, adding a counter
// when two captures land in the same millisecond.
func (c *Capturer) writeUnique(t time.Time, data []byte) (string, error) {
	base := FileName(t)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(c.dir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create capture file: %w", err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(path)
			return "", fmt.Errorf("write capture file: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("close capture file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("too many captures named %s", base)
}

// OutputDir returns <preferred>/<app> when it can be created, otherwise
// fallback (created if needed).
func OutputDir(preferred, app, fallback string) (string, error) {
	if preferred != "" {
		dir := filepath.Join(preferred, app)
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir, nil
		}
	}
	if err := os.MkdirAll(fallback, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", fallback, err)
	}
	return fallback, nil
}
