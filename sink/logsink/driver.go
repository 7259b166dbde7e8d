// Package logsink logs every consumed record. It is the default handler of
// the consumer pipeline.
package logsink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"fluxgate/internal/logging"
	"fluxgate/sink"
	"fluxgate/source/kafka"
)

/* ────────── public YAML config ────────── */
type Config struct {
	DelayMS       int  `yaml:"delay_ms"`        // artificial per-record delay
	PrintCounter  bool `yaml:"print_counter"`   // add a running sequence number
	ValueMaxBytes int  `yaml:"value_max_bytes"` // 0 = no truncation
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
	seq atomic.Uint64
}

func New(cfg Config) sink.Adapter { return &driver{cfg: cfg} }

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("log-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(ctx context.Context, rec *kafka.Record) error {
	if d.cfg.DelayMS > 0 {
		t := time.NewTimer(time.Duration(d.cfg.DelayMS) * time.Millisecond)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	attrs := []any{
		"value", d.render(rec.Value),
		"key", rec.Key,
		"record", rec.String(),
	}
	if d.cfg.PrintCounter {
		attrs = append(attrs, "seq", d.seq.Add(1))
	}
	logging.L().Info("Received message", attrs...)
	return nil
}

func (d *driver) Close() error { return nil }

func (d *driver) render(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}
	if d.cfg.ValueMaxBytes > 0 && len(s) > d.cfg.ValueMaxBytes {
		s = s[:d.cfg.ValueMaxBytes] + "…"
	}
	return s
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("log", func() sink.Adapter { return New(Config{}) })
}
