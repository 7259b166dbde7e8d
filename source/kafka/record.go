package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// acker commits one record's offset back to the group.
type acker interface {
	ack(ctx context.Context, rec *Record) error
}

// Record is one decoded broker message. Its offset is acknowledged by the
// driver once the handler that received it returns nil; handlers have no way
// to acknowledge a record themselves.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       any
	Value     any
	RawKey    []byte
	RawValue  []byte
	Headers   map[string][]byte
	Timestamp time.Time

	acker acker
	acked atomic.Bool
}

// Acked reports whether the driver has acknowledged the record.
func (r *Record) Acked() bool { return r.acked.Load() }

func (r *Record) String() string {
	return fmt.Sprintf("%s/%d@%d", r.Topic, r.Partition, r.Offset)
}

// ack is idempotent: a second call is a no-op.
func (r *Record) ack(ctx context.Context) error {
	if r.acked.Swap(true) {
		return nil
	}
	if r.acker == nil {
		return nil
	}
	return r.acker.ack(ctx, r)
}

// HandlerError is returned by Run when a handler rejects a record. The record
// stays unacknowledged so the group redelivers it after a restart.
type HandlerError struct {
	Topic     string
	Partition int32
	Offset    int64
	Cause     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("kafka: handler failed for %s/%d@%d: %v", e.Topic, e.Partition, e.Offset, e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }
