package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult_ResolveOnce(t *testing.T) {
	r := New[int]()

	if r.Settled() {
		t.Fatal("new result should be pending")
	}
	if !r.Resolve(7) {
		t.Fatal("first Resolve should settle")
	}
	if r.Resolve(8) {
		t.Error("second Resolve should be ignored")
	}
	if r.Reject(errors.New("late")) {
		t.Error("Reject after Resolve should be ignored")
	}

	v, err := r.Wait(context.Background())
	if err != nil || v != 7 {
		t.Errorf("expected 7, nil; got %d, %v", v, err)
	}
}

func TestResult_Reject(t *testing.T) {
	want := errors.New("no camera")
	r := New[string]()
	r.Reject(want)

	if !r.Settled() {
		t.Fatal("expected settled result")
	}
	v, err := r.Wait(context.Background())
	if !errors.Is(err, want) || v != "" {
		t.Errorf("expected zero value and %v, got %q, %v", want, v, err)
	}
}

func TestResult_WaitHonorsContext(t *testing.T) {
	r := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestGo(t *testing.T) {
	ok := Go(func() (int, error) { return 3, nil })
	bad := Go(func() (int, error) { return 0, errors.New("failed") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if v, err := ok.Wait(ctx); err != nil || v != 3 {
		t.Errorf("expected 3, nil; got %d, %v", v, err)
	}
	if _, err := bad.Wait(ctx); err == nil {
		t.Error("expected error from failing fn")
	}

	select {
	case <-ok.Done():
	default:
		t.Error("Done should be closed after Wait returns")
	}
}
