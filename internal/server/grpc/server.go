// Package grpcserver runs the ops listener: the standard gRPC health service
// reporting whether the platform can serve traffic.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "cybergames"

// Ops is the ops gRPC server. It starts NOT_SERVING.
type Ops struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewOps builds the ops server; dev additionally registers reflection.
func NewOps(log *zap.Logger, dev bool) *Ops {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(RecoverStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}
	o := &Ops{srv: s, health: hs, log: log}
	o.SetServing(false)
	return o
}

// SetServing flips the reported status of the platform.
func (o *Ops) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	o.health.SetServingStatus("", st)
	o.health.SetServingStatus(ServiceName, st)
}

// Watch runs check every interval and reports its outcome until ctx ends.
// A check runs immediately.
func (o *Ops) Watch(ctx context.Context, check func(context.Context) error, every time.Duration) {
	probe := func() {
		cctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()
		err := check(cctx)
		if err != nil && ctx.Err() == nil {
			o.log.Warn("readiness check failed", zap.Error(err))
		}
		o.SetServing(err == nil)
	}

	probe()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}

// Serve accepts connections on lis until Shutdown.
func (o *Ops) Serve(lis net.Listener) error { return o.srv.Serve(lis) }

// Shutdown reports NOT_SERVING to every watcher, then stops gracefully,
// forcing the stop after timeout.
func (o *Ops) Shutdown(timeout time.Duration) {
	o.health.Shutdown()

	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.srv.Stop()
	}
}
