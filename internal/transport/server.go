package transport

import (
	"context"
	"fmt"
	"net"

	"fluxgate/internal/logging"
	"fluxgate/source/kafka"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// StatusFunc reports the stream consumer; nil means no consumer runs.
type StatusFunc func() kafka.Status

type Server struct {
	grpc   *grpc.Server
	lis    net.Listener
	health *health.Server
}

func StartServer(port int, status StatusFunc) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return NewServer(lis, status), nil
}

func NewServer(lis net.Listener, status StatusFunc) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		lis:    lis,
		health: health.NewServer(),
	}
	RegisterControlServer(s.grpc, &control{status: status})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(Control_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error {
	logging.L().Info("control plane listening", "addr", s.lis.Addr().String())
	return s.grpc.Serve(s.lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

type control struct {
	UnimplementedControlServer
	status StatusFunc
}

func (*control) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("pong"), nil
}

func (c *control) ConsumerStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := kafka.Status{State: kafka.StateIdle}
	if c.status != nil {
		st = c.status()
	}
	return StatusStruct(st)
}

// StatusStruct flattens a consumer status into a protobuf Struct.
func StatusStruct(st kafka.Status) (*structpb.Struct, error) {
	topics := make([]any, len(st.Topics))
	for i, t := range st.Topics {
		topics[i] = t
	}
	offsets := make(map[string]any, len(st.Offsets))
	for k, v := range st.Offsets {
		offsets[k] = v
	}
	return structpb.NewStruct(map[string]any{
		"state":     st.State.String(),
		"group_id":  st.GroupID,
		"client_id": st.ClientID,
		"topics":    topics,
		"handled":   st.Handled,
		"acked":     st.Acked,
		"offsets":   offsets,
	})
}

// Dial connects a control client to addr (host:port).
func Dial(addr string) (ControlClient, *grpc.ClientConn, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return NewControlClient(cc), cc, nil
}
