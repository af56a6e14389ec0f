package healthgrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestRefreshFollowsProbe(t *testing.T) {
	var probeErr error
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), func(context.Context) error { return probeErr }, 0)

	if got := status(t, s, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before first probe, got %v", got)
	}

	s.refresh(context.Background())
	for _, svc := range []string{"", ServiceName} {
		if got := status(t, s, svc); got != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("service %q: expected SERVING, got %v", svc, got)
		}
	}

	probeErr = errors.New("db unreachable")
	s.refresh(context.Background())
	if got := status(t, s, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after failed probe, got %v", got)
	}
}
