package main

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/config"
	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/probe"
	"github.com/hamed0406/opsboard/internal/repo"
	"github.com/hamed0406/opsboard/internal/sla"
)

// registerProbes loads PROBES_FILE. Without one, the API watches its own
// storage: the flag table always, and the database when there is one.
func registerProbes(cfg config.Config, r *probe.Registry, flagsRepo repo.FlagRepo, database probe.Pinger, logger *zap.Logger) error {
	defs, err := probe.LoadDefinitions(cfg.ProbesFile)
	if err != nil {
		return err
	}
	deps := probe.BuildDeps{
		Database:       database,
		HTTPTimeout:    cfg.ProbeTimeout,
		DefaultRetries: cfg.RetryAttempts,
		RetryDelay:     cfg.RetryBackoff,
		Clock:          clock.WallClock,
	}
	if len(defs) > 0 {
		logger.Info("probes_file_loaded", zap.String("path", cfg.ProbesFile), zap.Int("probes", len(defs)))
		return probe.RegisterAll(r, defs, deps)
	}

	if err := r.Register("feature-flags", "storage", flagTableProbe(flagsRepo)); err != nil {
		return err
	}
	if database != nil {
		if err := r.Register("database", "database", &probe.PingChecker{Target: database}); err != nil {
			return err
		}
	}
	return nil
}

// flagTableProbe reads the flag table the same way the cache does.
func flagTableProbe(fr repo.FlagRepo) probe.Checker {
	return probe.Func(func(ctx context.Context) (probe.Outcome, error) {
		all, err := fr.AllFlags(ctx)
		if err != nil {
			return probe.Outcome{}, fmt.Errorf("load flags: %w", err)
		}
		return probe.Outcome{
			Status:  domain.StatusOK,
			Message: fmt.Sprintf("%d flags", len(all)),
			Details: map[string]any{"flags": len(all)},
		}, nil
	})
}

func slaService(cfg config.Config, st store, logger *zap.Logger) *sla.Service {
	return sla.NewService(st, st, clock.WallClock, cfg.SLALocation, logger)
}
