package engine

import (
	"context"
	"fmt"

	"fluxgate/internal/config"
	gatewayhttp "fluxgate/internal/gateway/http"
	"fluxgate/internal/logging"
	"fluxgate/internal/pipeline"
	"fluxgate/internal/remote"
	"fluxgate/internal/scheduler"
	"fluxgate/internal/telemetry"
	"fluxgate/internal/transport"
	"fluxgate/source/kafka"
)

// Bootstrap builds every long-lived component. Nothing is served until Run.
// Cancelling ctx aborts construction between stages and releases what was
// already built.
func Bootstrap(ctx context.Context, cfg config.Gateway) (*Engine, error) {
	logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	// 1. scheduler + remote client + gateway surface
	pool := scheduler.NewPool(cfg.Pool)
	client := remote.NewClient(cfg.Remote)
	gw := gatewayhttp.NewServer(client, pool, gatewayhttp.Config{
		Addr:          cfg.HTTP.Addr,
		DefaultItemID: cfg.Remote.DefaultItemID,
	})

	// 2. pipeline runner (optional)
	var runner *pipeline.Runner
	if err := ctx.Err(); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.Pipeline != "" {
		var err error
		if runner, err = pipeline.Compile(cfg.Pipeline); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		if runner != nil {
			_ = runner.Close()
		}
		pool.Close()
		return nil, err
	}

	// 3. transport server
	var status transport.StatusFunc
	if runner != nil {
		status = runner.Status
	} else {
		status = func() kafka.Status { return kafka.Status{State: kafka.StateIdle} }
	}
	srv, err := transport.StartServer(cfg.GRPCPort, status)
	if err != nil {
		if runner != nil {
			_ = runner.Close()
		}
		pool.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}

	// 4. metrics
	metrics := telemetry.Expose(cfg.MetricsPort)

	return &Engine{
		cfg:       cfg,
		pool:      pool,
		gateway:   gw,
		transport: srv,
		runner:    runner,
		metrics:   metrics,
	}, nil
}
