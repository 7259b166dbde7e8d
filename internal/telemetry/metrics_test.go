package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(RemoteRequests.WithLabelValues("GET", "pass"))
	RemoteRequests.WithLabelValues("GET", "pass").Inc()
	RemoteRequests.WithLabelValues("GET", "pass").Inc()
	if got := testutil.ToFloat64(RemoteRequests.WithLabelValues("GET", "pass")); got != before+2 {
		t.Fatalf("want %v, got %v", before+2, got)
	}
}

func TestGaugeSet(t *testing.T) {
	PoolWorkers.WithLabelValues("test-pool").Set(3)
	if got := testutil.ToFloat64(PoolWorkers.WithLabelValues("test-pool")); got != 3 {
		t.Fatalf("want 3 workers, got %v", got)
	}
}
