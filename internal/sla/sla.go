// Package sla folds the health check log into monthly uptime reports.
package sla

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/repo"
)

const (
	MinYear      = 2000
	MaxYear      = 2100
	DefaultLimit = 12
	MaxLimit     = 120
)

var ErrInvalidPeriod = errors.New("invalid sla period")

// Validate rejects months outside 1..12 and years outside MinYear..MaxYear.
func Validate(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d must be between 1 and 12", ErrInvalidPeriod, month)
	}
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("%w: year %d must be between %d and %d", ErrInvalidPeriod, year, MinYear, MaxYear)
	}
	return nil
}

// Window returns [first instant of the month, first instant of the next month) in loc.
func Window(year, month int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Summarize turns status counts into a report. A month without checks is
// marked InsufficientData and carries no percentage.
func Summarize(year, month int, counts repo.StatusCounts, start, end time.Time) domain.SlaReport {
	r := domain.SlaReport{
		Year:           year,
		Month:          month,
		TotalChecks:    counts.Total(),
		OKChecks:       counts[domain.StatusOK],
		WarningChecks:  counts[domain.StatusWarning],
		CriticalChecks: counts[domain.StatusCritical],
		WindowStart:    start.UTC(),
		WindowEnd:      end.UTC(),
	}
	if r.TotalChecks == 0 {
		r.InsufficientData = true
		return r
	}
	up := float64(r.TotalChecks-r.CriticalChecks) / float64(r.TotalChecks) * 100
	up = math.Round(up*100) / 100
	r.UptimePercent = &up
	return r
}

type Service struct {
	results repo.ResultRepo
	reports repo.SlaRepo
	clock   clock.Clock
	loc     *time.Location
	log     *zap.Logger
}

func NewService(results repo.ResultRepo, reports repo.SlaRepo, clk clock.Clock, loc *time.Location, log *zap.Logger) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{results: results, reports: reports, clock: clk, loc: loc, log: log}
}

// Compute builds the report for a month from the log without storing it.
func (s *Service) Compute(ctx context.Context, year, month int) (domain.SlaReport, error) {
	if err := Validate(year, month); err != nil {
		return domain.SlaReport{}, err
	}
	start, end := Window(year, month, s.loc)
	counts, err := s.results.CountByStatus(ctx, start, end)
	if err != nil {
		return domain.SlaReport{}, fmt.Errorf("count results %04d-%02d: %w", year, month, err)
	}
	return Summarize(year, month, counts, start, end), nil
}

// CurrentMonth computes the in-progress month. It is never persisted.
func (s *Service) CurrentMonth(ctx context.Context) (domain.SlaReport, error) {
	now := s.clock.Now().In(s.loc)
	return s.Compute(ctx, now.Year(), int(now.Month()))
}

// Upsert recomputes and overwrites the stored report for a month.
func (s *Service) Upsert(ctx context.Context, year, month int) (domain.SlaReport, error) {
	r, err := s.Compute(ctx, year, month)
	if err != nil {
		return domain.SlaReport{}, err
	}
	if err := s.reports.UpsertReport(ctx, &r); err != nil {
		return domain.SlaReport{}, fmt.Errorf("store sla report %04d-%02d: %w", year, month, err)
	}
	s.log.Info("sla_report_upserted",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("total_checks", r.TotalChecks),
		zap.Bool("insufficient_data", r.InsufficientData),
	)
	return r, nil
}

// List returns stored reports newest first. limit <= 0 means DefaultLimit;
// anything above MaxLimit is capped.
func (s *Service) List(ctx context.Context, limit int) ([]domain.SlaReport, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	out, err := s.reports.RecentReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list sla reports: %w", err)
	}
	return out, nil
}
