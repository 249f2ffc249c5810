package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func awaitFuture[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestFuture(t *testing.T) {
	ctx := context.Background()

	t.Run("chained", func(t *testing.T) {
		first := async(ctx, func(context.Context) (int, error) { return 20, nil })
		second := thenApply(ctx, first, func(_ context.Context, v int) (int, error) { return v + 1, nil })

		v, err := awaitFuture(t, second)
		assert.NoError(t, err)
		assert.Equal(t, 21, v)
	})

	t.Run("error skips continuation", func(t *testing.T) {
		called := false
		failed := completed(0, errors.New("first step failed"))
		next := thenApply(ctx, failed, func(context.Context, int) (string, error) {
			called = true
			return "unreachable", nil
		})

		v, err := awaitFuture(t, next)
		assert.EqualError(t, err, "first step failed")
		assert.Empty(t, v)
		assert.False(t, called)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		f := async(ctx, func(context.Context) (int, error) { panic("kaboom") })

		_, err := awaitFuture(t, f)
		assert.ErrorContains(t, err, "kaboom")
	})

	t.Run("await gives up with the context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		f := async(ctx, func(context.Context) (int, error) {
			<-release
			return 1, nil
		})

		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := f.Await(waitCtx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		select {
		case <-f.Done():
			t.Fatal("future completed early")
		default:
		}
	})
}
