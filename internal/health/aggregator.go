// Package health runs the registered probes, records their results and
// collects user error reports.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/probe"
	"github.com/hamed0406/opsboard/internal/repo"
)

// Runner is satisfied by *probe.Registry.
type Runner interface {
	RunAll(ctx context.Context) []probe.Result
}

// Alerter is satisfied by *alert.Alerter.
type Alerter interface {
	Evaluate(ctx context.Context, results []domain.HealthCheckResult) (int, error)
}

type Aggregator struct {
	runner  Runner
	results repo.ResultRepo
	alerter Alerter
	clock   clock.Clock
	log     *zap.Logger
	newID   func() string
}

func NewAggregator(runner Runner, results repo.ResultRepo, alerter Alerter, clk clock.Clock, log *zap.Logger) *Aggregator {
	if clk == nil {
		clk = clock.WallClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		runner:  runner,
		results: results,
		alerter: alerter,
		clock:   clk,
		log:     log,
		newID:   func() string { return uuid.NewString() },
	}
}

// Summary is the response shape of a run.
type Summary struct {
	Total    int                        `json:"total"`
	OK       int                        `json:"ok"`
	Warnings int                        `json:"warnings"`
	Critical int                        `json:"critical"`
	Results  []domain.HealthCheckResult `json:"results"`
}

func summarize(rows []domain.HealthCheckResult) Summary {
	s := Summary{Total: len(rows), Results: rows}
	for _, r := range rows {
		switch r.Status {
		case domain.StatusOK:
			s.OK++
		case domain.StatusWarning:
			s.Warnings++
		case domain.StatusCritical:
			s.Critical++
		}
	}
	return s
}

func (a *Aggregator) RunAll(ctx context.Context) []probe.Result {
	return a.runner.RunAll(ctx)
}

// Persist appends one immutable row per result, stamped with the current
// time. Rows that fail to write are skipped and their errors combined; the
// rows that were written are returned either way.
func (a *Aggregator) Persist(ctx context.Context, results []probe.Result, source domain.Source) ([]domain.HealthCheckResult, error) {
	now := a.clock.Now().UTC()
	rows := make([]domain.HealthCheckResult, 0, len(results))
	var errs error
	for _, res := range results {
		row := domain.HealthCheckResult{
			ID:        a.newID(),
			Service:   res.Service,
			Category:  res.Category,
			Status:    res.Status,
			LatencyMS: res.LatencyMS,
			TestedAt:  now,
			Details:   res.Details,
			Source:    source,
		}
		if res.Status != domain.StatusOK {
			row.ErrorMessage = res.Message
		}
		if err := a.results.AppendResult(ctx, &row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("persist %s: %w", res.Service, err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

// Run executes every probe, persists the results and evaluates alerts.
// An alerting failure is logged only.
func (a *Aggregator) Run(ctx context.Context, source domain.Source) (Summary, error) {
	start := a.clock.Now()
	results := a.RunAll(ctx)
	rows, err := a.Persist(ctx, results, source)
	sum := summarize(rows)

	if a.alerter != nil && len(rows) > 0 {
		if _, aerr := a.alerter.Evaluate(ctx, rows); aerr != nil {
			a.log.Warn("alert_evaluate_failed", zap.Error(aerr))
		}
	}

	a.log.Info("health_run",
		zap.String("source", string(source)),
		zap.Int("probes", len(results)),
		zap.Int("ok", sum.OK),
		zap.Int("warnings", sum.Warnings),
		zap.Int("critical", sum.Critical),
		zap.Duration("took", a.clock.Now().Sub(start)),
	)
	return sum, err
}

// ErrorDigest is the recent user error reports plus counts by category.
type ErrorDigest struct {
	Since      time.Time                  `json:"since"`
	Total      int                        `json:"total"`
	ByCategory map[string]int             `json:"by_category"`
	Results    []domain.HealthCheckResult `json:"results"`
}

const (
	DefaultErrorWindow = 24 * time.Hour
	maxDigestRows      = 500
)

// RecentErrors returns user reported rows newer than now-window.
func (a *Aggregator) RecentErrors(ctx context.Context, window time.Duration) (ErrorDigest, error) {
	if window <= 0 {
		window = DefaultErrorWindow
	}
	since := a.clock.Now().UTC().Add(-window)
	rows, err := a.results.FindResults(ctx, repo.ResultQuery{
		From:   since,
		Source: domain.SourceUser,
		Limit:  maxDigestRows,
	})
	if err != nil {
		return ErrorDigest{}, fmt.Errorf("find user reports: %w", err)
	}
	d := ErrorDigest{
		Since:      since,
		Total:      len(rows),
		ByCategory: make(map[string]int),
		Results:    rows,
	}
	if d.Results == nil {
		d.Results = []domain.HealthCheckResult{}
	}
	for _, r := range rows {
		d.ByCategory[r.Category]++
	}
	return d, nil
}
