// Package pipeline connects the Kafka stream consumer to its sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"fluxgate/internal/logging"
	"fluxgate/sink"
	"fluxgate/source/kafka"
)

type namedSink struct {
	name string
	sink.Adapter
}

type Runner struct {
	source kafka.Adapter
	sinks  []namedSink
}

func NewRunner() *Runner { return &Runner{} }

func (r *Runner) AddSink(name string, s sink.Adapter) {
	r.sinks = append(r.sinks, namedSink{name: name, Adapter: s})
}

func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }

/*──────── record routing ───────*/

// handle pushes rec through every sink in order. The first failure is
// returned and the record is left unacknowledged.
func (r *Runner) handle(ctx context.Context, rec *kafka.Record) error {
	for _, s := range r.sinks {
		if err := s.Push(ctx, rec); err != nil {
			return fmt.Errorf("sink %s: %w", s.name, err)
		}
	}
	return nil
}

// Run blocks until ctx is cancelled or the consumer stops on a failed
// record. Cancellation is a clean stop.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	err := r.source.Run(ctx, r.handle)
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		logging.L().Error("pipeline stopped", "err", err)
	}
	return err
}

func (r *Runner) Status() kafka.Status {
	if r.source == nil {
		return kafka.Status{State: kafka.StateIdle}
	}
	return r.source.Status()
}

// Close stops the source first so no record reaches a closed sink.
func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
