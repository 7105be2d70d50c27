package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"invoiceapi/internal/config"
	"invoiceapi/internal/observability/logging"
	"invoiceapi/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	envFile := flag.String("env-file", ".env", "path to a .env file; ignored when missing")
	flag.Parse()

	// Default logger until the server installs the configured one
	if _, err := logging.NewLogger("info", "json"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("invoiceapi exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	logger := slog.Default()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")
	case serveErr = <-errCh:
		logger.Error("Server error", logging.Err(serveErr))
	}

	if err := srv.Stop(context.Background()); err != nil {
		return errors.Join(serveErr, fmt.Errorf("shutdown: %w", err))
	}
	if serveErr != nil {
		return serveErr
	}

	logger.Info("Server stopped")
	return nil
}
