package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fluxgate/internal/config"
)

func testConfig(t *testing.T) config.Gateway {
	t.Helper()
	cfg, err := config.LoadGatewayConfig("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.GRPCPort = 0
	cfg.MetricsPort = 0
	cfg.Pool.Min = 1
	return cfg
}

func TestEngine_RunStopsCleanlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, err := Bootstrap(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestBootstrap_BadPipelineFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline = filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(cfg.Pipeline, []byte("source: { kind: sqs }\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Bootstrap(context.Background(), cfg); err == nil {
		t.Fatal("want bootstrap error for unsupported source")
	}
}

func TestBootstrap_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Bootstrap(ctx, testConfig(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
