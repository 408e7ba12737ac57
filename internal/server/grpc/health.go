// Package grpcserver serves the standard gRPC health service for orchestrators.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry tracked alongside the overall ("") status.
const ServiceName = "buyers"

// Probe reports whether the backing store is usable.
type Probe func(ctx context.Context) error

// Health is a gRPC server carrying only grpc.health.v1.Health.
type Health struct {
	srv   *grpc.Server
	hs    *health.Server
	probe Probe
	log   *zap.Logger
}

// NewHealth builds the server. Statuses start as NOT_SERVING until the first probe passes.
func NewHealth(probe Probe, log *zap.Logger) *Health {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &Health{srv: srv, hs: hs, probe: probe, log: log}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}

// Check runs the probe once and publishes the result.
func (h *Health) Check(ctx context.Context) {
	if h.probe == nil {
		h.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	if err := h.probe(ctx); err != nil {
		h.log.Warn("health probe failed", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
}

// Watch re-runs the probe every interval until ctx ends.
func (h *Health) Watch(ctx context.Context, every time.Duration) {
	h.Check(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, every)
			h.Check(pctx)
			cancel()
		}
	}
}

// Serve blocks serving lis.
func (h *Health) Serve(lis net.Listener) error { return h.srv.Serve(lis) }

// Stop marks everything NOT_SERVING and drains, forcing a stop after grace.
func (h *Health) Stop(grace time.Duration) {
	h.hs.Shutdown()
	done := make(chan struct{})
	go func() {
		h.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		h.srv.Stop()
	}
}
