package engine

import (
	"context"
	"errors"
	"net/http"

	"fluxgate/internal/config"
	gatewayhttp "fluxgate/internal/gateway/http"
	"fluxgate/internal/logging"
	"fluxgate/internal/pipeline"
	"fluxgate/internal/scheduler"
	"fluxgate/internal/transport"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type Engine struct {
	cfg       config.Gateway
	pool      *scheduler.Pool
	gateway   *gatewayhttp.Server
	transport *transport.Server
	runner    *pipeline.Runner
	metrics   *http.Server
}

// Run serves until ctx is cancelled or any component fails; either way
// every component is shut down before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := e.gateway.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		if err := e.transport.Serve(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	if e.runner != nil {
		eg.Go(func() error {
			return e.runner.Run(ctx)
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		e.shutdown()
		return nil
	})

	return eg.Wait()
}

func (e *Engine) shutdown() {
	log := logging.L()
	log.Info("engine shutting down")

	tctx, cancel := context.WithTimeout(context.Background(), e.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := e.gateway.Shutdown(tctx); err != nil {
		log.Warn("gateway shutdown", "err", err)
	}
	if e.runner != nil {
		if err := e.runner.Close(); err != nil {
			log.Warn("pipeline close", "err", err)
		}
	}
	e.transport.Stop()
	if err := e.metrics.Shutdown(tctx); err != nil {
		log.Warn("metrics shutdown", "err", err)
	}
	e.pool.Close()
}
