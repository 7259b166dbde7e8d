package stream

import (
	"context"
	"errors"

	"fluxgate/internal/scheduler"
)

var ErrTooMany = errors.New("stream: mono emitted more than one value")

// Mono is a Flux of zero or one value. It resolves to exactly one terminal
// event: a value, an empty completion, or an error.
type Mono[T any] struct {
	flux *Flux[T]
}

// NewMono wraps fn. ok=false with a nil error means empty completion.
func NewMono[T any](fn func(ctx context.Context) (v T, ok bool, err error)) *Mono[T] {
	return &Mono[T]{flux: New(func(ctx context.Context, emit Emit[T]) error {
		v, ok, err := fn(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return emit(ctx, v)
	})}
}

func MonoJust[T any](v T) *Mono[T] { return &Mono[T]{flux: Just(v)} }

func MonoEmpty[T any]() *Mono[T] { return &Mono[T]{flux: Empty[T]()} }

func MonoError[T any](err error) *Mono[T] { return &Mono[T]{flux: Error[T](err)} }

// Flux exposes the Mono as a sequence.
func (m *Mono[T]) Flux() *Flux[T] { return m.flux }

func (m *Mono[T]) DoOnNext(fn func(ctx context.Context, v T)) *Mono[T] {
	return &Mono[T]{flux: m.flux.DoOnNext(fn)}
}

func (m *Mono[T]) Log(tag string) *Mono[T] {
	return &Mono[T]{flux: m.flux.Log(tag)}
}

func (m *Mono[T]) SubscribeOn(p *scheduler.Pool) *Mono[T] {
	return &Mono[T]{flux: m.flux.SubscribeOn(p)}
}

func (m *Mono[T]) PublishOn(p *scheduler.Pool) *Mono[T] {
	return &Mono[T]{flux: m.flux.PublishOn(p, 1)}
}

func MapMono[T, R any](m *Mono[T], fn func(ctx context.Context, v T) (R, error)) *Mono[R] {
	return &Mono[R]{flux: Map(m.flux, fn)}
}

// FlatMap continues with the Mono returned by fn for the upstream value.
func FlatMap[T, R any](m *Mono[T], fn func(ctx context.Context, v T) *Mono[R]) *Mono[R] {
	return &Mono[R]{flux: FlatMapMany(m, func(ctx context.Context, v T) *Flux[R] {
		return fn(ctx, v).flux
	})}
}

// FlatMapMany continues with the sequence returned by fn for the upstream
// value. The inner sequence runs in the context the value arrived on.
func FlatMapMany[T, R any](m *Mono[T], fn func(ctx context.Context, v T) *Flux[R]) *Flux[R] {
	return New(func(ctx context.Context, emit Emit[R]) error {
		return m.flux.source(ctx, func(ctx context.Context, v T) error {
			return fn(ctx, v).source(ctx, emit)
		})
	})
}

// Await blocks until the Mono terminates. ok reports whether a value was
// produced; an empty completion returns ok=false and a nil error.
func (m *Mono[T]) Await(ctx context.Context) (v T, ok bool, err error) {
	sub := m.flux.SubscribeWithPrefetch(ctx, 1)
	defer sub.Cancel()

	v, ok = sub.Next(ctx)
	if !ok {
		return v, false, sub.Err()
	}
	if _, more := sub.Next(ctx); more {
		var zero T
		return zero, false, ErrTooMany
	}
	if err := sub.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// MonoSource builds a Mono from a source that emits at most once. Await
// reports ErrTooMany if it emits more.
func MonoSource[T any](src Source[T]) *Mono[T] {
	return &Mono[T]{flux: New(src)}
}
