// Package kafka forwards consumed records to another topic.
package kafka

import (
	"context"
	"fmt"

	"fluxgate/sink"
	source "fluxgate/source/kafka"

	"github.com/IBM/sarama"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
}

type driver struct {
	cfg Config
	p   sarama.SyncProducer
}

// NewWithProducer wires an existing producer, e.g. a sarama mock.
func NewWithProducer(cfg Config, p sarama.SyncProducer) sink.Adapter {
	return &driver{cfg: cfg, p: p}
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka-sink: topic is required")
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

// Push returns once the broker has accepted the record, so the source
// record is only acknowledged after the forward is durable.
func (d *driver) Push(_ context.Context, rec *source.Record) error {
	msg := &sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Value: sarama.ByteEncoder(rec.RawValue),
	}
	if rec.RawKey != nil {
		msg.Key = sarama.ByteEncoder(rec.RawKey)
	}
	for k, v := range rec.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	if _, _, err := d.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka-sink: forward %s to %s: %w", rec, d.cfg.Topic, err)
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	p := d.p
	d.p = nil
	return p.Close()
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
