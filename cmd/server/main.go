package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hijjiri/todo-app/internal/config"
	domain_todo "github.com/hijjiri/todo-app/internal/domain/todo"
	"github.com/hijjiri/todo-app/internal/infrastructure/store"
	grpcadapter "github.com/hijjiri/todo-app/internal/interface/grpc"
	httpadapter "github.com/hijjiri/todo-app/internal/interface/http"
	"github.com/hijjiri/todo-app/internal/telemetry"
	todo_usecase "github.com/hijjiri/todo-app/internal/usecase/todo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
)

const (
	serviceName     = "todo-app"
	shutdownTimeout = 10 * time.Second
	healthInterval  = 10 * time.Second
)

func main() {
	// ---- Logger ----
	zcfg := zap.NewProductionConfig()
	logger, err := zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	defer logger.Sync()

	if err := run(logger, zcfg.Level); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger, level zap.AtomicLevel) error {
	// ---- Config 読み込み ----
	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("invalid LOG_LEVEL, keep info", zap.String("raw", cfg.LogLevel), zap.Error(err))
	}

	logger.Info("loaded config",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("grpc_health_addr", cfg.GRPCHealthAddr),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Int("store_read_retry_attempts", cfg.Store.ReadRetryAttempts),
		zap.Duration("http_request_timeout", cfg.HTTPRequestTimeout),
		zap.Bool("require_title", cfg.RequireTitle),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Tracing ----
	shutdownTracing, err := telemetry.SetupTracing(telemetry.TracingConfig{
		ServiceName: serviceName,
		Stdout:      cfg.OTELTracesStdout,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("failed to shutdown tracing", zap.Error(err))
		}
	}()

	// ---- Store 接続 ----
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(sctx); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	if err := store.PingWithRetry(ctx, st.Backend, logger, 20, 3*time.Second); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	logger.Info("connected to store", zap.String("driver", st.Driver))

	// ---- Todo Usecase / HTTP ----
	var repo domain_todo.Repository = st.Backend
	uc := todo_usecase.New(repo, logger,
		todo_usecase.WithTitlePolicy(domain_todo.TitlePolicy{RequireNonEmpty: cfg.RequireTitle}),
	)

	router, err := httpadapter.NewRouter(httpadapter.NewTodoHandler(uc, logger), logger, httpadapter.RouterConfig{
		AllowOrigin:    cfg.CORSAllowOrigin,
		RequestTimeout: cfg.HTTPRequestTimeout,
		Metrics:        httpadapter.NewMetrics(prometheus.DefaultRegisterer),
		Pinger:         st.Backend,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---- metrics HTTP サーバ (/metrics) ----
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ---- gRPC Health & Reflection ----
	hs := health.NewServer()
	grpcServer := grpcadapter.NewServer(logger, cfg.HTTPRequestTimeout, hs)
	reporter := grpcadapter.NewHealthReporter(hs, st.Backend, healthInterval, logger)

	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCHealthAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http api server started", zap.String("addr", cfg.HTTPAddr))
		return serveHTTP(apiSrv)
	})
	g.Go(func() error {
		logger.Info("metrics server started", zap.String("addr", cfg.MetricsAddr))
		return serveHTTP(metricsSrv)
	})
	g.Go(func() error {
		logger.Info("gRPC health server started", zap.String("addr", cfg.GRPCHealthAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		return reporter.Run(gctx)
	})

	// ---- Graceful shutdown ----
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		return errors.Join(
			apiSrv.Shutdown(sctx),
			metricsSrv.Shutdown(sctx),
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func serveHTTP(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
