package stream

import (
	"context"
	"errors"

	"fluxgate/internal/logging"
	"fluxgate/internal/scheduler"

	"github.com/google/uuid"
)

// Log traces the lifecycle of each subscription under tag: subscribe, every
// value, then complete, error or cancel.
func (f *Flux[T]) Log(tag string) *Flux[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		l := logging.L().With("tag", tag, "sub", uuid.NewString())
		l.Info("onSubscribe", scheduler.Attrs(ctx)...)

		n := 0
		err := f.source(ctx, func(ctx context.Context, v T) error {
			n++
			l.Info("onNext", append(scheduler.Attrs(ctx), "value", v)...)
			return emit(ctx, v)
		})

		switch {
		case err == nil:
			l.Info("onComplete", "count", n)
		case errors.Is(err, context.Canceled):
			l.Info("cancel", "count", n)
		default:
			l.Error("onError", "count", n, "err", err)
		}
		return err
	})
}
