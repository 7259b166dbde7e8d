package kafka

import "context"

// Handler processes one record. Returning nil lets the driver acknowledge
// the record; an error stops consumption with the record unacknowledged.
type Handler func(ctx context.Context, rec *Record) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, Handler) error
	Close() error
	Status() Status
}
