package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llmworker/internal/config"
	"llmworker/internal/httpapi"
	"llmworker/internal/logging"
	"llmworker/internal/telemetry"
	"llmworker/internal/worker"
)

func newServeCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve jobs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, stderr)
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().String("engine", "", "Engine: llama or echo")
	cmd.Flags().String("tokenizer", "", "Tokenizer for the echo engine: words or a tiktoken encoding")
	return cmd
}

func runServe(cmd *cobra.Command, stderr io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}
	reporter, err := telemetry.New(telemetry.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     "llmworker@" + version,
	})
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	defer func() { _ = reporter.Flush(2 * time.Second) }()

	configureHTTP(cfg, log)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	svc := httpapi.NewWorkerService(cfg.Engine, cfg.ModelName, cfg.AdapterName)
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(svc), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("engine", cfg.Engine).Msg("llmworker listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	eng, err := openEngine(ctx, cfg, log)
	if err != nil {
		svc.LoadFailed(err)
		log.Error().Err(err).Msg("startup failed")
		reporter.Report(err, map[string]string{"phase": "startup"})
		shutdown(srv, log)
		return err
	}
	defer func() { _ = eng.Close() }()
	svc.Attach(worker.NewHandler(eng, worker.Options{
		Log:           log,
		Reporter:      reporter,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.AdmissionWaitSeconds) * time.Second,
	}))
	log.Info().Str("engine", eng.Name()).Msg("ready")

	select {
	case <-ctx.Done():
		shutdown(srv, log)
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func configureHTTP(cfg config.Config, log zerolog.Logger) {
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestLogLevel(httpapi.ParseLogLevel(cfg.LogLevel))
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
}

func shutdown(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
}
