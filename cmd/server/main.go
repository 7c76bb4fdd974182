package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	app "github.com/memestreet/market_layer/internal/app"
	"github.com/memestreet/market_layer/internal/app/httpapi"
	"github.com/memestreet/market_layer/internal/app/services/engagement"
	"github.com/memestreet/market_layer/internal/app/storage/badgerstore"
	"github.com/memestreet/market_layer/internal/app/storage/postgres"
	"github.com/memestreet/market_layer/internal/app/storage/redisindex"
	"github.com/memestreet/market_layer/internal/config"
	"github.com/memestreet/market_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/market.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: "server",
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := app.Stores{}

	if strings.EqualFold(cfg.Store.Backend, "badger") {
		kv, err := badgerstore.Open(badgerstore.Options{Path: cfg.Store.BadgerPath})
		if err != nil {
			return err
		}
		defer kv.Close()
		stores.Assets = kv
		stores.Indexes = kv
		stores.Portfolios = kv
		stores.Schedules = kv
		log.WithField("path", cfg.Store.BadgerPath).Info("using badger store")
	}

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		indexes, err := redisindex.Dial(ctx, addr, cfg.Redis.Password, cfg.Redis.DB, "market")
		if err != nil {
			return err
		}
		defer indexes.Close()
		stores.Indexes = indexes
		log.WithField("addr", addr).Info("using redis index store")
	}

	if dsn := strings.TrimSpace(cfg.Postgres.DSN); dsn != "" {
		sink, err := postgres.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer sink.Close()
		stores.History = sink
		log.Info("using postgres market-history sink")
	}

	opts := app.Options{
		InitialDelay: time.Duration(cfg.Scheduler.InitialDelaySeconds) * time.Second,
		TickInterval: time.Duration(cfg.Scheduler.TickIntervalSeconds) * time.Second,
		SweepSpec:    cfg.Scheduler.SweepSpec,
		SweepGrace:   time.Duration(cfg.Scheduler.SweepGraceSeconds) * time.Second,
	}
	if endpoint := strings.TrimSpace(cfg.Engagement.Endpoint); endpoint != "" {
		source, err := engagement.NewHTTPSource(nil, endpoint, cfg.Engagement.APIKey, cfg.Engagement.RequestsPerSecond, log)
		if err != nil {
			return err
		}
		opts.Engagement = source
	} else {
		log.Warn("engagement.endpoint not set; revaluation will reuse stored scores")
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}

	apiHandler, err := httpapi.NewHandler(application, httpapi.Options{AuditLogPath: cfg.Server.AuditLog})
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	return application.Stop(shutdownCtx)
}
