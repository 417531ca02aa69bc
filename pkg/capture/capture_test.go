package capture

import (
	"bytes"
	"context"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-lumacam/pkg/frame"
)

func grayFrame(w, h int, level byte, released *int) *frame.Frame {
	data := bytes.Repeat([]byte{level}, w*h)
	return frame.New(w, h, data, func(*frame.Frame) {
		if released != nil {
			*released++
		}
	})
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 13, 45, 10, 42*int(time.Millisecond), time.Local)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "2024-03-01-13-45-10-042.jpg", FileName(fixedClock()))
}

func TestTakePhoto_WritesJPEG(t *testing.T) {
	dir := t.TempDir()
	c := NewCapturer(dir, 90, nil, WithClock(fixedClock))

	released := 0
	out, err := c.TakePhoto(context.Background(), grayFrame(64, 48, 120, &released), Meta{Lens: "back", FlashMode: "off"})
	require.NoError(t, err)

	assert.Equal(t, 1, released, "frame must be released once")
	assert.Equal(t, filepath.Join(dir, "2024-03-01-13-45-10-042.jpg"), out.Path)
	assert.True(t, strings.HasPrefix(out.URI, "file://"), "uri %s", out.URI)
	assert.NotEmpty(t, out.ID)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, out.Size, len(data))

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)
}

func TestTakePhoto_SameMillisecondGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	c := NewCapturer(dir, 80, nil, WithClock(fixedClock))
	ctx := context.Background()

	first, err := c.TakePhoto(ctx, grayFrame(8, 8, 1, nil), Meta{})
	require.NoError(t, err)
	second, err := c.TakePhoto(ctx, grayFrame(8, 8, 2, nil), Meta{})
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, "2024-03-01-13-45-10-042_1.jpg", filepath.Base(second.Path))
}

func TestTakePhoto_ReleasesOnFailure(t *testing.T) {
	c := NewCapturer(filepath.Join(t.TempDir(), "missing", "dir"), 80, nil)

	released := 0
	_, err := c.TakePhoto(context.Background(), grayFrame(8, 8, 1, &released), Meta{})
	require.Error(t, err)
	assert.Equal(t, 1, released)
}

func TestTakePhoto_NoFrame(t *testing.T) {
	c := NewCapturer(t.TempDir(), 80, nil)

	_, err := c.TakePhoto(context.Background(), nil, Meta{})
	assert.ErrorIs(t, err, ErrNoFrame)

	f := grayFrame(2, 2, 0, nil)
	f.Close()
	_, err = c.TakePhoto(context.Background(), f, Meta{})
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestTakePhoto_CancelledContext(t *testing.T) {
	c := NewCapturer(t.TempDir(), 80, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	released := 0
	_, err := c.TakePhoto(ctx, grayFrame(2, 2, 0, &released), Meta{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, released)
}

func TestOutputDir(t *testing.T) {
	root := t.TempDir()
	fallback := filepath.Join(root, "files")

	dir, err := OutputDir(filepath.Join(root, "media"), "lumacam", fallback)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "media", "lumacam"), dir)

	// A regular file where the media dir should be forces the fallback.
	blocker := filepath.Join(root, "blocked")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	dir, err = OutputDir(blocker, "lumacam", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, dir)

	dir, err = OutputDir("", "lumacam", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, dir)
}
