package session

import (
	"context"
	"fmt"
)

// Future is the pending result of a ReactiveRepository call. A *Session
// future completing with nil means "no session".
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// async runs fn on its own goroutine.
func async[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("session: async operation panicked: %v", r)
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

func completed[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// thenApply starts next once f has completed successfully. An error from f
// completes the returned future without calling next.
func thenApply[T, U any](ctx context.Context, f *Future[T], next func(ctx context.Context, val T) (U, error)) *Future[U] {
	return async(ctx, func(ctx context.Context) (U, error) {
		val, err := f.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return next(ctx, val)
	})
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx is done. Giving up on
// ctx does not stop the underlying operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
