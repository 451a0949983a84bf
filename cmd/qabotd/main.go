package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/qabot/internal/app"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/server"
)

func main() {
	// Logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	// The check pipeline logs through slog.
	slogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(slogger)

	cfg, err := common.LoadConfigFile(os.Getenv("QABOT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, slogger, app.Options{})
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	if a.DB != nil {
		if err := a.DB.HealthCheck(ctx, cfg.Database.DialTimeout, slogger); err != nil {
			log.Fatalf("DB health failed: %v", err)
		}
		log.Infow("DB health OK", "dialect", a.DB.Dialect)
	} else {
		log.Infow("run log disabled (DB_URL not set)")
	}

	grpcServer, hs := server.New(a.Service, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Infow("gRPC serving", "addr", lis.Addr().String(), "mode", cfg.Check.Mode, "provider", cfg.LLM.Provider)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Errorf("grpc serve: %v", err)
		}
	}
	log.Info("shutting down...")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()
	fmt.Println("stopped.")
}
