package telemetry

import (
	"errors"
	"fmt"
	"net/http"

	"fluxgate/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RemoteRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgate",
		Name:      "remote_requests_total",
		Help:      "Upstream HTTP calls by method and classified outcome.",
	}, []string{"method", "outcome"})

	RemoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fluxgate",
		Name:      "remote_request_seconds",
		Help:      "Time until upstream response headers arrive.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	ConsumerRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fluxgate",
		Name:      "consumer_records_total",
		Help:      "Broker records by result (handled, acked, failed).",
	}, []string{"result"})

	ConsumerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fluxgate",
		Name:      "consumer_state",
		Help:      "Stream consumer state (0 idle, 1 subscribed, 2 receiving, 3 stopping, 4 stopped).",
	})

	PoolWorkers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fluxgate",
		Name:      "pool_workers",
		Help:      "Live workers per scheduler pool.",
	}, []string{"pool"})

	PoolQueued = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fluxgate",
		Name:      "pool_queued",
		Help:      "Tasks waiting for a worker per scheduler pool.",
	}, []string{"pool"})
)

func init() {
	prometheus.MustRegister(RemoteRequests, RemoteLatency, ConsumerRecords, ConsumerState, PoolWorkers, PoolQueued)
}

// Expose serves /metrics on port in the background. The returned server is
// owned by the caller and should be shut down on exit.
func Expose(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server stopped", "err", err)
		}
	}()
	return srv
}
