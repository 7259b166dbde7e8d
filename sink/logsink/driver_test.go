package logsink

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"fluxgate/internal/logging"
	"fluxgate/sink"
	"fluxgate/source/kafka"
)

func TestPush_LogsReceivedMessage(t *testing.T) {
	var buf bytes.Buffer
	logging.Configure(logging.Options{Level: "info", Output: &buf})
	t.Cleanup(func() { logging.Configure(logging.Options{}) })

	d := New(Config{PrintCounter: true, ValueMaxBytes: 5})
	rec := &kafka.Record{Topic: "reactive-test", Offset: 3, Key: int32(7), Value: "hello world"}
	if err := d.Push(context.Background(), rec); err != nil {
		t.Fatalf("push: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`msg="Received message"`, `value=hello…`, "key=7", "seq=1", "reactive-test/0@3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log line %q missing %q", out, want)
		}
	}
}

func TestPush_DelayHonoursContext(t *testing.T) {
	d := New(Config{DelayMS: 10_000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Push(ctx, &kafka.Record{}); err == nil {
		t.Fatal("want context error")
	}
}

func TestRegistered(t *testing.T) {
	a, err := sink.NewAdapter("log")
	if err != nil {
		t.Fatalf("log sink not registered: %v", err)
	}
	if err := a.Configure("bogus"); err == nil {
		t.Fatal("want config type error")
	}
}
