package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Ops is the operator-facing gRPC server carrying grpc.health.v1 and reflection.
type Ops struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewOps builds the ops server with every service marked SERVING.
func NewOps(logger *slog.Logger) *Ops {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(gs)
	return &Ops{grpc: gs, health: hs, logger: logger}
}

// SetServing flips the overall health status.
func (o *Ops) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	o.health.SetServingStatus("", st)
}

// Serve blocks serving on lis.
func (o *Ops) Serve(lis net.Listener) error {
	o.logger.Info("ops.grpc.serving", "addr", lis.Addr().String())
	return o.grpc.Serve(lis)
}

// Shutdown reports NOT_SERVING and drains in-flight RPCs.
func (o *Ops) Shutdown() {
	o.health.Shutdown()
	o.grpc.GracefulStop()
	o.logger.Info("ops.grpc.stopped")
}
