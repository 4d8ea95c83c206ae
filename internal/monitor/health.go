package monitor

import (
	"context"
	"fmt"
	"net"

	"github.com/banshee-data/depthmesh/internal/mesh"
	"github.com/banshee-data/depthmesh/internal/monitoring"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported by depthmesh.
const HealthService = "depthmesh"

// Health maps update outcomes onto the standard gRPC health protocol. The
// service starts NOT_SERVING, becomes SERVING after a commit and drops back
// to NOT_SERVING while the source has no frame.
type Health struct {
	server *health.Server
}

var _ mesh.UpdateObserver = (*Health)(nil)

// NewHealth creates a health reporter.
func NewHealth() *Health {
	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{server: hs}
}

// ObserveUpdate implements mesh.UpdateObserver.
func (h *Health) ObserveUpdate(st mesh.UpdateStats) {
	switch st.Outcome {
	case mesh.OutcomeCommitted:
		h.server.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	case mesh.OutcomeSourceUnavailable:
		h.server.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// Check reports the current status of HealthService.
func (h *Health) Check(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Register adds the health service to s.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Serve runs a gRPC server with the health service on lis until ctx is
// cancelled.
func (h *Health) Serve(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	h.Register(s)

	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[Monitor] gRPC health listening on %s", lis.Addr())
		errc <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		h.server.Shutdown()
		s.GracefulStop()
		return nil
	case err := <-errc:
		return fmt.Errorf("grpc serve: %w", err)
	}
}
