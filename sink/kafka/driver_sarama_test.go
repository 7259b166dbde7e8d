package kafka

import (
	"context"
	"errors"
	"testing"

	source "fluxgate/source/kafka"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestPush_ForwardsRawKeyAndValue(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "forwarded" {
			return errors.New("wrong topic " + msg.Topic)
		}
		v, _ := msg.Value.Encode()
		if string(v) != "hello" {
			return errors.New("wrong value " + string(v))
		}
		k, _ := msg.Key.Encode()
		if len(k) != 4 || k[3] != 9 {
			return errors.New("key not forwarded raw")
		}
		return nil
	})

	d := NewWithProducer(Config{Topic: "forwarded"}, p)
	rec := &source.Record{Topic: "reactive-test", RawKey: source.EncodeInteger(9), RawValue: []byte("hello")}
	if err := d.Push(context.Background(), rec); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPush_BrokerFailureIsReturned(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	d := NewWithProducer(Config{Topic: "forwarded"}, p)
	err := d.Push(context.Background(), &source.Record{Topic: "reactive-test", RawValue: []byte("x")})
	if !errors.Is(err, sarama.ErrNotLeaderForPartition) {
		t.Fatalf("want broker error, got %v", err)
	}
	_ = d.Close()
}

func TestConfigure_RequiresTopic(t *testing.T) {
	d := &driver{}
	if err := d.Configure(Config{}); err == nil {
		t.Fatal("want error for missing topic")
	}
	if err := d.Configure("nope"); err == nil {
		t.Fatal("want error for wrong config type")
	}
}
