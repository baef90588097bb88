package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/lab-compliance/internal/app"
	"github.com/joseph-ayodele/lab-compliance/internal/async"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/export"
	"github.com/joseph-ayodele/lab-compliance/internal/ingest"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
	"github.com/joseph-ayodele/lab-compliance/internal/repository"
	"github.com/joseph-ayodele/lab-compliance/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger, closeLog := common.SetupLogger(cfg.Log.File, cfg.Log.Level)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("labcheckd exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("labcheckd stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		return err
	}
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	jobs := repository.NewJobRepository(db, logger)
	results := repository.NewResultRepository(db, logger)
	custom := repository.NewCategoryRepository(db, logger)
	m := metrics.New()

	wired, err := app.BuildPipeline(cfg, custom, m, logger)
	if err != nil {
		return err
	}

	orch := async.NewOrchestrator(jobs, results, wired.Processor,
		async.WithLogger(logger),
		async.WithMetrics(m),
		async.WithSubmitRate(cfg.Pipeline.SubmitRPS, cfg.Pipeline.SubmitBurst),
		async.WithStaleAfter(cfg.Pipeline.StaleAfter),
		async.WithRetryPolicy(async.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			Initial:     cfg.Pipeline.BackoffInitial,
			Max:         cfg.Pipeline.BackoffMax,
		}),
		async.WithQueueOptions(
			async.WithWorkers(cfg.Pipeline.Workers),
			async.WithQueueSize(cfg.Pipeline.QueueSize),
			async.WithProcessTimeout(cfg.Pipeline.JobTimeout),
		),
	)
	if n, err := orch.Recover(ctx); err != nil {
		logger.Error("job recovery failed", "error", err)
	} else if n > 0 {
		logger.Info("re-enqueued unfinished jobs", "count", n)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(server.UnaryLogging(logger)))
	server.RegisterJobServiceServer(grpcServer, server.NewJobService(orch, export.NewService(jobs, results, logger), logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("labcheckd listening", "grpc_addr", cfg.Server.GRPCAddr)
		return grpcServer.Serve(lis)
	})

	if cfg.Server.MetricsAddr != "" {
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if cfg.Ingest.InboxDir != "" {
		ing := ingest.NewIngestor(orch, async.SubmitOptions{}, logger)
		g.Go(func() error {
			err := ing.Watch(gctx, ingest.WatchConfig{
				Roots:       []string{cfg.Ingest.InboxDir},
				InitialScan: true,
				Debounce:    cfg.Ingest.Debounce,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthServer.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		grpcServer.GracefulStop()
		_ = metricsServer.Shutdown(sctx)
		orch.Shutdown(sctx)
		return nil
	})

	return g.Wait()
}
