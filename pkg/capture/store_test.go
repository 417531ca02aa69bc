package capture

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "captures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	taken := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	want := Output{
		ID:      "abc",
		Path:    "/tmp/a.jpg",
		URI:     "file:///tmp/a.jpg",
		Size:    1234,
		Width:   640,
		Height:  480,
		TakenAt: taken,
		Meta:    Meta{Lens: "front", FlashMode: "auto", FlashFired: true, Luma: 31.5},
	}
	require.NoError(t, s.Record(ctx, want))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, want.Path, got.Path)
	assert.Equal(t, want.Meta, got.Meta)
	assert.True(t, want.TakenAt.Equal(got.TakenAt))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"one", "two", "three"} {
		require.NoError(t, s.Record(ctx, Output{
			ID:      id,
			Path:    "/tmp/" + id + ".jpg",
			TakenAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "three", list[0].ID)
	assert.Equal(t, "two", list[1].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_DuplicatePathRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Output{ID: "a", Path: "/tmp/x.jpg"}))
	assert.Error(t, s.Record(ctx, Output{ID: "b", Path: "/tmp/x.jpg"}))
}

func TestCapturer_IndexesIntoStore(t *testing.T) {
	s := openTestStore(t)
	c := NewCapturer(t.TempDir(), 80, nil, WithStore(s))

	out, err := c.TakePhoto(context.Background(), grayFrame(16, 16, 30, nil), Meta{Lens: "back", FlashMode: "on", FlashFired: true})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Path, got.Path)
	assert.True(t, got.Meta.FlashFired)
}
