package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCHealth returns a grpc.health.v1 server seeded with the current readiness.
func (c *Checker) NewGRPCHealth(ctx context.Context) *health.Server {
	hs := health.NewServer()
	c.sync(ctx, hs, nil)
	return hs
}

// Watch refreshes the serving status of hs every interval until ctx is done, then marks it
// NOT_SERVING so load balancers drain the instance.
func (c *Checker) Watch(ctx context.Context, hs *health.Server, interval time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			c.sync(ctx, hs, log)
		}
	}
}

func (c *Checker) sync(ctx context.Context, hs *health.Server, log *zap.Logger) {
	checks, ok := c.Ready(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if log != nil {
			log.Warn("readiness probe failed", zap.Any("checks", checks))
		}
	}
	hs.SetServingStatus("", status)
}
