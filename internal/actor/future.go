package actor

import (
	"context"
	"errors"
	"sync"
)

// ErrHandlerPanic is reported through a future whose handler panicked.
var ErrHandlerPanic = errors.New("actor: handler panicked")

// Future is a single-resolution result. It is safe to resolve from one
// goroutine and read from many.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewFuture returns an unresolved future and the function that resolves it.
// Only the first call to resolve has any effect.
func NewFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T) *Future[T] {
	f, resolve := NewFuture[T]()
	resolve(value, nil)
	return f
}

// Failed returns a future that is already complete with err.
func Failed[T any](err error) *Future[T] {
	f, resolve := NewFuture[T]()
	var zero T
	resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has a value or an error.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future resolves or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetAll waits for every future and returns the values in input order.
// The first error encountered (in input order) is returned.
func GetAll[T any](ctx context.Context, futures []*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	for i, f := range futures {
		if f == nil {
			continue
		}
		v, err := f.Get(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Ack is the resolution type of fire-and-forget commands.
type Ack = struct{}
