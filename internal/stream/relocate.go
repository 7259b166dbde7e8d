package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fluxgate/internal/scheduler"
)

var errTakeDone = errors.New("stream: take limit reached")

// SubscribeOn runs the source, and so everything it emits until the next
// PublishOn, on a worker of p. A subscription that is already on a worker of
// p keeps that worker.
func (f *Flux[T]) SubscribeOn(p *scheduler.Pool) *Flux[T] {
	return New(func(ctx context.Context, emit Emit[T]) error {
		if ec, ok := p.Current(ctx); ok {
			ec.Role = scheduler.RoleEmission
			return guard(func() error {
				return f.source(scheduler.WithExecContext(ctx, ec), emit)
			})
		}

		errc := make(chan error, 1)
		if err := scheduler.RunEmissionOn(p, ctx, func(pctx context.Context) {
			errc <- guard(func() error { return f.source(pctx, emit) })
		}); err != nil {
			return err
		}
		// The task may still be queued after ctx is cancelled; returning
		// before it finishes would let it emit into a terminated subscriber.
		return <-errc
	})
}

// PublishOn delivers values downstream from workers of p. Upstream keeps
// running where it was subscribed and hands values over through a buffer of
// prefetch slots. Delivery is serial, so order is preserved.
func (f *Flux[T]) PublishOn(p *scheduler.Pool, prefetch int) *Flux[T] {
	if prefetch < 1 {
		prefetch = DefaultPrefetch
	}
	return New(func(ctx context.Context, emit Emit[T]) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		h := &handoff[T]{
			pool:     p,
			ctx:      ctx,
			cancel:   cancel,
			emit:     emit,
			slots:    make(chan struct{}, prefetch),
			finished: make(chan struct{}),
		}
		upErr := f.source(ctx, h.push)
		return h.finish(ctx, upErr)
	})
}

// guard turns a panic in fn into an error so the sequence still terminates.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream: panic: %v", r)
		}
	}()
	return fn()
}

// handoff is the bounded queue between an upstream producer and the drain
// that runs downstream on the pool. At most one drain loop runs at a time.
// When upstream itself occupies a worker of the pool it drains inline
// instead of waiting for a drain task that may never get a worker.
type handoff[T any] struct {
	pool   *scheduler.Pool
	ctx    context.Context
	cancel context.CancelFunc
	emit   Emit[T]
	slots  chan struct{}

	mu      sync.Mutex
	queue   []T
	pending int  // drain tasks submitted but not started
	running bool // a drain loop is active
	done    bool
	closed  bool
	upErr   error

	downErr  error // written only by the active drain
	finished chan struct{}
}

func (h *handoff[T]) push(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.slots <- struct{}{}:
	default:
		h.drainInline(ctx)
		select {
		case h.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.mu.Lock()
	h.queue = append(h.queue, v)
	err := h.scheduleLocked()
	h.mu.Unlock()
	return err
}

func (h *handoff[T]) finish(ctx context.Context, upErr error) error {
	h.mu.Lock()
	h.done = true
	h.upErr = upErr
	err := h.scheduleLocked()
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.drainInline(ctx)
	<-h.finished
	if h.downErr != nil {
		return h.downErr
	}
	return h.upErr
}

func (h *handoff[T]) scheduleLocked() error {
	if h.running || h.pending > 0 || h.closed {
		return nil
	}
	if err := scheduler.RunProcessingOn(h.pool, h.ctx, h.drain); err != nil {
		return err
	}
	h.pending++
	return nil
}

// drainInline runs the drain loop on the calling goroutine when ctx is on a
// worker of the pool and no drain is active.
func (h *handoff[T]) drainInline(ctx context.Context) {
	ec, ok := h.pool.Current(ctx)
	if !ok {
		return
	}
	h.mu.Lock()
	if h.running || h.closed {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	ec.Role = scheduler.RoleProcessing
	h.loop(scheduler.WithExecContext(h.ctx, ec))
}

func (h *handoff[T]) drain(pctx context.Context) {
	h.mu.Lock()
	h.pending--
	if h.running || h.closed {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	h.loop(pctx)
}

func (h *handoff[T]) loop(pctx context.Context) {
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.running = false
			if h.done && !h.closed {
				h.closed = true
				h.mu.Unlock()
				close(h.finished)
				return
			}
			h.mu.Unlock()
			return
		}
		v := h.queue[0]
		var zero T
		h.queue[0] = zero
		h.queue = h.queue[1:]
		h.mu.Unlock()
		<-h.slots

		if h.downErr != nil {
			continue
		}
		if err := guard(func() error { return h.emit(pctx, v) }); err != nil {
			h.downErr = err
			h.cancel()
		}
	}
}
