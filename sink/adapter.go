package sink

import (
	"context"
	"fmt"

	"fluxgate/source/kafka"
)

// Adapter is the common behaviour every sink exposes. Push returning nil
// means the record is durably handled and may be acknowledged.
type Adapter interface {
	Configure(any) error                               // driver-specific YAML ⇒ struct
	Push(ctx context.Context, rec *kafka.Record) error // handle one record
	Close() error                                      // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
