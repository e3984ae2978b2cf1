package grpcadapter

import (
	"context"
	"time"

	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName は health で個別に問い合わせできる REST API のサービス名。
const ServiceName = "todoapp.TodoAPI"

// NewServer は health + reflection だけを載せた gRPC サーバを作る。
// REST 本体は HTTP 側。ここはオーケストレータからの疎通確認用。
func NewServer(logger *zap.Logger, timeout time.Duration, hs *health.Server) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			NewRecoveryUnaryInterceptor(logger),
			NewTimeoutUnaryInterceptor(logger, timeout),
			NewLoggingUnaryInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			NewRecoveryStreamInterceptor(logger),
			NewLoggingStreamInterceptor(logger),
		),
	)

	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

// HealthReporter はストアへの ping 結果を health.Server に反映する。
type HealthReporter struct {
	hs       *health.Server
	pinger   domain_todo.Pinger
	interval time.Duration
	logger   *zap.Logger
}

func NewHealthReporter(hs *health.Server, pinger domain_todo.Pinger, interval time.Duration, logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		hs:       hs,
		pinger:   pinger,
		interval: interval,
		logger:   logger,
	}
}

// Check は 1 回だけ ping して状態を更新し、SERVING かどうかを返す。
func (r *HealthReporter) Check(ctx context.Context) bool {
	st := healthpb.HealthCheckResponse_SERVING
	if r.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := r.pinger.Ping(pctx)
		cancel()
		if err != nil {
			r.logger.Warn("store ping failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	r.hs.SetServingStatus("", st)
	r.hs.SetServingStatus(ServiceName, st)
	return st == healthpb.HealthCheckResponse_SERVING
}

// Run は ctx が終わるまで interval ごとに Check する。
// 終了時は Shutdown して全サービスを NOT_SERVING にする。
func (r *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			return nil
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}
