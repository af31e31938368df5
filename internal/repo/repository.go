package repo

import (
	"context"
	"time"

	"github.com/hamed0406/opsboard/internal/domain"
)

// Ports (interfaces) implemented by the memory and postgres adapters.

type FlagRepo interface {
	// AllFlags returns every stored flag ordered by key.
	AllFlags(ctx context.Context) ([]domain.FeatureFlag, error)
	// GetFlag returns nil, nil when the key has no row.
	GetFlag(ctx context.Context, key string) (*domain.FeatureFlag, error)
	UpsertFlag(ctx context.Context, f *domain.FeatureFlag) error
}

// ResultQuery selects health check rows with From <= tested_at < To.
// A zero To means no upper bound; an empty Source matches every source.
type ResultQuery struct {
	From   time.Time
	To     time.Time
	Source domain.Source
	Limit  int
}

// StatusCounts is the number of rows per status inside a window.
type StatusCounts map[domain.Status]int

func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

type ResultRepo interface {
	AppendResult(ctx context.Context, r *domain.HealthCheckResult) error
	// FindResults returns matching rows newest first.
	FindResults(ctx context.Context, q ResultQuery) ([]domain.HealthCheckResult, error)
	CountByStatus(ctx context.Context, from, to time.Time) (StatusCounts, error)
}

type SlaRepo interface {
	// UpsertReport stores or overwrites the report keyed by (year, month).
	UpsertReport(ctx context.Context, r *domain.SlaReport) error
	// GetReport returns nil, nil when no report was stored for the month.
	GetReport(ctx context.Context, year, month int) (*domain.SlaReport, error)
	// RecentReports returns at most limit reports, newest month first.
	RecentReports(ctx context.Context, limit int) ([]domain.SlaReport, error)
}

// AlertRepo keeps the last notified state per service.
type AlertRepo interface {
	// GetAlert returns nil, nil if there's no record yet.
	GetAlert(ctx context.Context, service string) (*domain.AlertState, error)
	// SetAlert upserts the record. A zero sentAt is stored as NULL.
	SetAlert(ctx context.Context, service string, critical bool, sentAt time.Time) error
}
