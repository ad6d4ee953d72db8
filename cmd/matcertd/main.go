package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/matcert-extractor/internal/app"
	"github.com/joseph-ayodele/matcert-extractor/internal/async"
	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	"github.com/joseph-ayodele/matcert-extractor/internal/ingest"
	"github.com/joseph-ayodele/matcert-extractor/internal/server"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (default $MATCERT_CONFIG)")
	watchDir := flag.String("watch", "", "directory to watch for new certificates (overrides config)")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *watchDir != "" {
		cfg.Server.WatchDir = *watchDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := common.NewLogger(os.Stdout, cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithProcessTimeout(cfg.Server.JobTimeout.Std()),
	)
	ingestor := ingest.NewFSIngestor(a.Store, queue, logger)

	if cfg.Server.WatchDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Server.WatchDir},
			InitialScan: true,
			SkipHidden:  true,
			Debounce:    2 * time.Second,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("watcher start failed", "dir", cfg.Server.WatchDir, "error", err)
			os.Exit(1)
		}
		go func() {
			for path := range events {
				if _, err := ingestor.IngestPath(ctx, path); err != nil {
					logger.Warn("watch ingest failed", "path", path, "error", err)
				}
			}
		}()
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		logger.Info("watching directory", "dir", cfg.Server.WatchDir)
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.LoggingInterceptor(logger)))
	// Health service
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	svc := server.NewCompositionService(a.Parser, a.Store, ingestor, a.Exporter, logger)
	server.RegisterCompositionServer(grpcServer, svc)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr, "engine", cfg.OCR.Engine, "persistence", a.Store != nil)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	hs.Shutdown()
	grpcServer.GracefulStop()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.JobTimeout.Std())
	defer cancel()
	queue.Shutdown(drainCtx)
	logger.Info("stopped")
}
