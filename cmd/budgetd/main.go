package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetintel/internal/cli"
	"budgetintel/internal/core"
	bhttp "budgetintel/internal/http"
	blog "budgetintel/internal/log"
	"budgetintel/internal/services"
	"budgetintel/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, "budgetd", os.Stdout)
	logger.Info("Starting budgetd", blog.FieldOperation, blog.OpStartup)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backend, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Cleanup(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	alerts := worker.NewAlertWorker(backend.Service, cfg.SheetsEnabled())
	if err := alerts.StartupCheck(ctx, core.MonthOf(time.Now())); err != nil {
		logger.Error("Startup check failed", "error", err)
	}

	processor := services.NewEvaluationProcessor(backend.Service, services.EvaluationProcessorConfig{
		Interval:             cfg.EvaluationInterval,
		IncludePreviousMonth: true,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if backend.Broker != nil {
		g.Go(func() error {
			err := backend.Broker.ConsumeLedgerEvents(gctx, alerts.HandleLedgerCommitted)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic evaluation only")
	}

	if cfg.HTTPEnabled() {
		srv := bhttp.NewServer(cfg.HTTPAddr, backend.Service, logger.WithComponent("http"))
		g.Go(func() error {
			logger.Info("Serving JSON API", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("budgetd stopped", blog.FieldOperation, blog.OpShutdown)
	return err
}
