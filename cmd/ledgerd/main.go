package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/casinoledger/internal/api"
	"github.com/fastprodman/casinoledger/internal/app"
	"github.com/fastprodman/casinoledger/internal/infra/logging"
	"github.com/fastprodman/casinoledger/internal/workers/retention"
	"github.com/fastprodman/casinoledger/pkg/envconf"
	"github.com/fastprodman/casinoledger/pkg/shutdownqueue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running ledgerd: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(ledgerdConfig)

	err := envconf.Load(cfg, ".env")
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel)

	queue := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := queue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Ledger ---
	ledgerApp, err := app.New(ctx, cfg.Config, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	queue.Add("ledger", func(context.Context) error {
		slog.Info("Close store and bus")
		return ledgerApp.Close()
	})

	// --- HTTP server ---
	router := api.NewRouter(ledgerApp.Ledger, api.RouterOptions{
		CurrencyDecimals: cfg.CurrencyDecimals,
		Metrics:          promhttp.Handler(),
	})
	srv := api.NewServer(cfg.Port, router)

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ledgerApp.Ledger.RunSync(gctx)
	})

	g.Go(func() error {
		worker := retention.New(ledgerApp.Ledger, cfg.Retention, cfg.RetentionInterval, logger)
		return worker.Run(gctx)
	})

	g.Go(func() error {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", serr)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shut down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}
		return nil
	})

	slog.Info("API started", "port", cfg.Port)

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
