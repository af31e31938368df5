package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/alert"
	"github.com/hamed0406/opsboard/internal/config"
	"github.com/hamed0406/opsboard/internal/flags"
	"github.com/hamed0406/opsboard/internal/health"
	"github.com/hamed0406/opsboard/internal/httpapi"
	apimw "github.com/hamed0406/opsboard/internal/httpapi/middleware"
	"github.com/hamed0406/opsboard/internal/logging"
	"github.com/hamed0406/opsboard/internal/metrics"
	"github.com/hamed0406/opsboard/internal/notify"
	"github.com/hamed0406/opsboard/internal/probe"
	"github.com/hamed0406/opsboard/internal/repo"
	"github.com/hamed0406/opsboard/internal/repo/memory"
	"github.com/hamed0406/opsboard/internal/repo/postgres"
)

// store is everything the API needs from persistence.
type store interface {
	repo.FlagRepo
	repo.ResultRepo
	repo.SlaRepo
	repo.AlertRepo
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st       store
		database probe.Pinger
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		st, database = pg, pg
		logger.Info("store_postgres")
	} else {
		st = memory.New()
		logger.Warn("store_memory", zap.String("hint", "set DATABASE_URL to persist flags and results"))
	}

	m := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	probes := probe.NewRegistry(logger, m, cfg.ProbeTimeout, cfg.ProbeConcurrency)
	if err := registerProbes(cfg, probes, st, database, logger); err != nil {
		return err
	}

	notifiers := notify.Multi{notify.Log{Logger: logger}}
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		notifiers = append(notifiers, s)
	}
	alerter := alert.New(st, notifiers, clock.WallClock, logger, alert.Config{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	})

	fs := flags.New(flags.Config{
		Loader:  st,
		Clock:   clock.WallClock,
		TTL:     cfg.FlagCacheTTL,
		Logger:  logger,
		Metrics: m,
	})
	agg := health.NewAggregator(probes, st, alerter, clock.WallClock, logger)
	slaSvc := slaService(cfg, st, logger)

	api := httpapi.NewServer(logger, fs, st, agg, slaSvc, reg, clock.WallClock)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Strings("probes", probes.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("api_shutdown")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	return multierr.Append(err, <-errCh)
}
