// Package async provides a one-shot result that is resolved exactly once.
package async

import (
	"context"
	"sync"
)

// Result holds a value or error that becomes available once.
type Result[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New creates an unresolved result.
func New[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Go runs fn in a goroutine and resolves the result with its return values.
func Go[T any](fn func() (T, error)) *Result[T] {
	r := New[T]()
	go func() {
		v, err := fn()
		if err != nil {
			r.Reject(err)
			return
		}
		r.Resolve(v)
	}()
	return r
}

// Resolve sets the value. It reports false if the result was already settled.
func (r *Result[T]) Resolve(v T) bool {
	return r.settle(v, nil)
}

// Reject sets the error. It reports false if the result was already settled.
func (r *Result[T]) Reject(err error) bool {
	var zero T
	return r.settle(zero, err)
}

func (r *Result[T]) settle(v T, err error) bool {
	settled := false
	r.once.Do(func() {
		r.value = v
		r.err = err
		settled = true
		close(r.done)
	})
	return settled
}

// Done is closed once the result is settled.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result is settled or ctx is done.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settled reports whether the result has been resolved or rejected.
func (r *Result[T]) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
