package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/medilink/internal/app"
	"github.com/joseph-ayodele/medilink/internal/catalog"
	"github.com/joseph-ayodele/medilink/internal/common"
	"github.com/joseph-ayodele/medilink/internal/server"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := cfg.NewLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Error("failed to close pipeline", "error", err)
		}
	}()

	// The API stays up without the catalog; /drugs answers 503.
	drugs, err := catalog.Open(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Warn("drug catalog unavailable", "backend", cfg.Catalog.Backend, "error", err)
		drugs = nil
	} else {
		defer func() {
			if err := drugs.Close(context.Background()); err != nil {
				logger.Error("failed to close drug catalog", "error", err)
			}
		}()
	}

	srv := server.New(server.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		GinMode:        cfg.Server.GinMode,
	}, pipeline.Analysis, drugs, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ops := server.NewOps(logger)
	opsLis, err := net.Listen("tcp", cfg.Server.OpsGRPCAddr)
	if err != nil {
		logger.Error("failed to listen on ops address", "addr", cfg.Server.OpsGRPCAddr, "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := ops.Serve(opsLis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("medilink listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	ops.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	ops.Shutdown()
	logger.Info("stopped")
}
