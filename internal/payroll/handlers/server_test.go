package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_RegisterHTTPHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := NewServer(0, 8080, logger)

	s.RegisterHTTPHandler(NewHTTPHandler(&mockPayrollController{}, logger), "secret")

	if s.httpServer.Handler == nil {
		t.Error("expected httpServer.Handler to be set")
	}
	if s.httpServer.Addr != s.httpEndpoint {
		t.Errorf("expected httpServer.Addr %q, got %q", s.httpEndpoint, s.httpServer.Addr)
	}
}

func TestServer_HealthFollowsLifecycle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s := NewServer(0, 0, logger)
	ctx := context.Background()
	req := &healthpb.HealthCheckRequest{Service: auth.ServiceName}

	_, err := s.health.Check(ctx, req)
	assert.Error(t, err, "service is unknown before registration")

	s.RegisterGRPCHandler(NewPayrollHandler(&mockPayrollController{}, logger))
	resp, err := s.health.Check(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	s.RegisterHTTPHandler(NewHTTPHandler(&mockPayrollController{}, logger), "secret")
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	// Give the servers a moment to start.
	time.Sleep(200 * time.Millisecond)

	s.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Server Start returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for server to stop")
	}

	resp, err = s.health.Check(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
