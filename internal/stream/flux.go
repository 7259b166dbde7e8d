// Package stream implements cold, demand-driven asynchronous sequences.
//
// A Flux does nothing until it is subscribed. Subscribing starts the source in
// the background; values travel through a bounded buffer, so a consumer that
// stops calling Next stalls the producer instead of growing memory. A Mono is
// a Flux that resolves to at most one value.
package stream

import (
	"context"
	"sync"
)

// DefaultPrefetch bounds how many values a subscription buffers ahead of the
// consumer.
const DefaultPrefetch = 32

// Emit hands one value downstream. It blocks while downstream has no room and
// returns an error once downstream is gone; sources must stop on error.
type Emit[T any] func(ctx context.Context, v T) error

// Source produces the values of a Flux. Returning nil completes the sequence,
// returning an error fails it.
type Source[T any] func(ctx context.Context, emit Emit[T]) error

type Flux[T any] struct {
	source Source[T]
}

func New[T any](src Source[T]) *Flux[T] {
	return &Flux[T]{source: src}
}

func Just[T any](vs ...T) *Flux[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		for _, v := range vs {
			if err := emit(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func Empty[T any]() *Flux[T] {
	return New(func(context.Context, Emit[T]) error { return nil })
}

func Error[T any](err error) *Flux[T] {
	return New(func(context.Context, Emit[T]) error { return err })
}

// DoOnNext runs fn for every value before passing it on, in whatever
// execution context the value is delivered on.
func (f *Flux[T]) DoOnNext(fn func(ctx context.Context, v T)) *Flux[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		return f.source(ctx, func(ctx context.Context, v T) error {
			fn(ctx, v)
			return emit(ctx, v)
		})
	})
}

// Map transforms each value; an error from fn fails the sequence.
func Map[T, R any](f *Flux[T], fn func(ctx context.Context, v T) (R, error)) *Flux[R] {
	return New(func(ctx context.Context, emit Emit[R]) error {
		return f.source(ctx, func(ctx context.Context, v T) error {
			r, err := fn(ctx, v)
			if err != nil {
				return err
			}
			return emit(ctx, r)
		})
	})
}

// Take completes after n values and cancels the rest of the source.
func (f *Flux[T]) Take(n int) *Flux[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		if n <= 0 {
			return nil
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		seen := 0
		err := f.source(ctx, func(ctx context.Context, v T) error {
			if err := emit(ctx, v); err != nil {
				return err
			}
			seen++
			if seen == n {
				cancel()
				return errTakeDone
			}
			return nil
		})
		if seen == n {
			return nil
		}
		return err
	})
}

// Subscribe starts the Flux with DefaultPrefetch.
func (f *Flux[T]) Subscribe(ctx context.Context) *Subscription[T] {
	return f.SubscribeWithPrefetch(ctx, DefaultPrefetch)
}

// SubscribeWithPrefetch starts the Flux. At most prefetch values are
// produced ahead of the consumer's Next calls.
func (f *Flux[T]) SubscribeWithPrefetch(ctx context.Context, prefetch int) *Subscription[T] {
	if prefetch < 1 {
		prefetch = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		ch:     make(chan T, prefetch),
		cancel: cancel,
	}
	go func() {
		err := f.source(ctx, func(ectx context.Context, v T) error {
			select {
			case s.ch <- v:
				return nil
			case <-ectx.Done():
				return ectx.Err()
			}
		})
		s.terminate(err)
		close(s.ch)
		cancel()
	}()
	return s
}

// Collect subscribes and gathers every value. On failure it returns the
// values delivered before the error together with the error.
func (f *Flux[T]) Collect(ctx context.Context) ([]T, error) {
	sub := f.Subscribe(ctx)
	defer sub.Cancel()
	var out []T
	for {
		v, ok := sub.Next(ctx)
		if !ok {
			return out, sub.Err()
		}
		out = append(out, v)
	}
}

// Subscription is the consumer side of a running Flux.
type Subscription[T any] struct {
	ch     chan T
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
	end bool
}

// Next blocks for the next value. It returns false once the sequence has
// terminated or ctx is done; Err then tells which.
func (s *Subscription[T]) Next(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-s.ch:
		if !ok {
			return zero, false
		}
		return v, true
	case <-ctx.Done():
		s.terminate(ctx.Err())
		s.cancel()
		return zero, false
	}
}

// Err is nil after normal completion.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the producer. Values already delivered stay delivered.
func (s *Subscription[T]) Cancel() {
	s.cancel()
}

// terminate records the first terminal signal only.
func (s *Subscription[T]) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end {
		return
	}
	s.end = true
	s.err = err
}
