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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/export"
	"github.com/joseph-ayodele/invoice-normalizer/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-normalizer/internal/metrics"
	"github.com/joseph-ayodele/invoice-normalizer/internal/normalize"
	"github.com/joseph-ayodele/invoice-normalizer/internal/reconcile"
	"github.com/joseph-ayodele/invoice-normalizer/internal/rulestore"
	"github.com/joseph-ayodele/invoice-normalizer/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := rulestore.BuildRegistry(ctx, rulestore.Config{
		Driver:          cfg.Rules.Driver,
		DSN:             cfg.Rules.DSN,
		MaxConns:        4,
		MaxConnLifetime: 30 * time.Minute,
		DialTimeout:     3 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("failed to load vendor rules", "error", err, "driver", cfg.Rules.Driver)
		os.Exit(1)
	}

	var mreg *metrics.Registry
	if cfg.Server.MetricsEnabled {
		mreg = metrics.NewRegistry()
	}

	normalizer := normalize.NewNormalizer(registry, normalize.Config{
		RetailMarkup:  cfg.Normalize.RetailMarkup,
		MarginLowPct:  cfg.Normalize.MarginLowPct,
		MarginHighPct: cfg.Normalize.MarginHighPct,
	}, logger)

	openaiClient := openai.NewClient(openai.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)

	reconciler := reconcile.NewService(logger, reconcile.Config{
		MatchTolerance: cfg.Normalize.MatchTolerance,
		RetryEnabled:   cfg.Normalize.RetryEnabled,
	}, openaiClient, normalizer, mreg)

	invoices := server.NewInvoiceServer(reconciler, cfg.Server.MaxImageMB, logger)

	grpcErr := make(chan error, 1)
	httpErr := make(chan error, 1)

	// gRPC server
	var lis net.Listener
	grpcServer, healthServer := server.NewGRPCServer(invoices, logger)
	if cfg.Server.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		logger.Info("invoiced grpc listening", "addr", cfg.Server.GRPCAddr)
		go func() { grpcErr <- grpcServer.Serve(lis) }()
	}

	// HTTP server
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		httpServer = &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: server.NewHTTPHandler(server.HTTPDeps{
				Invoices: invoices,
				Export:   export.NewService(logger),
				Metrics:  mreg,
				Logger:   logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("invoiced http listening", "addr", cfg.Server.HTTPAddr)
		go func() { httpErr <- httpServer.ListenAndServe() }()
	}

	select {
	case <-ctx.Done():
	case err := <-grpcErr:
		logger.Error("gRPC serve error", "error", err)
	case err := <-httpErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
		}
	}

	logger.Info("shutting down")
	healthServer.Shutdown()
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		cancel()
	}
	grpcServer.GracefulStop()
	logger.Info("stopped")
}
