package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"fluxgate/source/kafka"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
)

func startTestServer(t *testing.T, status StatusFunc) ControlClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(lis, status)
	go func() { _ = s.Serve() }()
	t.Cleanup(s.Stop)

	cli, cc, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close() })
	return cli
}

func TestControl_Ping(t *testing.T) {
	cli := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := cli.Ping(ctx, &emptypb.Empty{})
	if err != nil || out.GetValue() != "pong" {
		t.Fatalf("ping: %v %v", out, err)
	}
}

func TestControl_ConsumerStatus(t *testing.T) {
	cli := startTestServer(t, func() kafka.Status {
		return kafka.Status{
			State:   kafka.StateReceiving,
			GroupID: "my-group",
			Topics:  []string{"reactive-test"},
			Acked:   3,
			Offsets: map[string]int64{"reactive-test/0": 42},
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := cli.ConsumerStatus(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	m := st.AsMap()
	if m["state"] != "receiving" || m["group_id"] != "my-group" || m["acked"] != float64(3) {
		t.Fatalf("unexpected status %v", m)
	}
	if off := m["offsets"].(map[string]any)["reactive-test/0"]; off != float64(42) {
		t.Fatalf("unexpected offset %v", off)
	}
}

func TestControl_StatusWithoutConsumerIsIdle(t *testing.T) {
	cli := startTestServer(t, nil)
	st, err := cli.ConsumerStatus(context.Background(), &emptypb.Empty{})
	if err != nil || st.AsMap()["state"] != "idle" {
		t.Fatalf("got %v %v", st, err)
	}
}

func TestHealthServing(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(lis, nil)
	go func() { _ = s.Serve() }()
	defer s.Stop()

	_, cc, err := Dial(lis.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cc.Close()

	resp, err := healthpb.NewHealthClient(cc).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: Control_ServiceDesc.ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health: %v %v", resp, err)
	}
}
