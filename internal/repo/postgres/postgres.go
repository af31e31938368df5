package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/repo"
)

var (
	_ repo.FlagRepo   = (*Store)(nil)
	_ repo.ResultRepo = (*Store)(nil)
	_ repo.SlaRepo    = (*Store)(nil)
	_ repo.AlertRepo  = (*Store)(nil)
)

// Schema is applied by Migrate. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS feature_flags (
  key         TEXT PRIMARY KEY,
  value       BOOLEAN NOT NULL DEFAULT FALSE,
  description TEXT NOT NULL DEFAULT '',
  category    TEXT NOT NULL DEFAULT '',
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS health_check_results (
  id            TEXT PRIMARY KEY,
  service       TEXT NOT NULL,
  category      TEXT NOT NULL DEFAULT '',
  status        TEXT NOT NULL,
  error_message TEXT NOT NULL DEFAULT '',
  latency_ms    DOUBLE PRECISION NOT NULL DEFAULT 0,
  tested_at     TIMESTAMPTZ NOT NULL,
  details       JSONB NOT NULL DEFAULT '{}',
  source        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hcr_tested_at ON health_check_results (tested_at DESC);
CREATE INDEX IF NOT EXISTS idx_hcr_source_time ON health_check_results (source, tested_at DESC);

CREATE TABLE IF NOT EXISTS sla_reports (
  year              INTEGER NOT NULL,
  month             INTEGER NOT NULL,
  total_checks      INTEGER NOT NULL,
  ok_checks         INTEGER NOT NULL,
  warning_checks    INTEGER NOT NULL,
  critical_checks   INTEGER NOT NULL,
  uptime_percent    DOUBLE PRECISION NULL,
  insufficient_data BOOLEAN NOT NULL,
  window_start      TIMESTAMPTZ NOT NULL,
  window_end        TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (year, month)
);

CREATE TABLE IF NOT EXISTS alert_states (
  service      TEXT PRIMARY KEY,
  critical     BOOLEAN NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate creates the tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping lets the store itself be registered as a database probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- FlagRepo ----

func (s *Store) AllFlags(ctx context.Context) ([]domain.FeatureFlag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value, description, category, updated_at
		   FROM feature_flags
		  ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var out []domain.FeatureFlag
	for rows.Next() {
		var f domain.FeatureFlag
		if err := rows.Scan(&f.Key, &f.Value, &f.Description, &f.Category, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetFlag(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	var f domain.FeatureFlag
	err := s.pool.QueryRow(ctx,
		`SELECT key, value, description, category, updated_at
		   FROM feature_flags
		  WHERE key = $1`, key).
		Scan(&f.Key, &f.Value, &f.Description, &f.Category, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get flag: %w", err)
	}
	return &f, nil
}

func (s *Store) UpsertFlag(ctx context.Context, f *domain.FeatureFlag) error {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feature_flags (key, value, description, category, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key)
		DO UPDATE SET value=EXCLUDED.value, description=EXCLUDED.description,
		              category=EXCLUDED.category, updated_at=EXCLUDED.updated_at`,
		f.Key, f.Value, f.Description, f.Category, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert flag: %w", err)
	}
	return nil
}

// ---- ResultRepo ----

func (s *Store) AppendResult(ctx context.Context, r *domain.HealthCheckResult) error {
	details := r.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO health_check_results
		   (id, service, category, status, error_message, latency_ms, tested_at, details, source)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Service, r.Category, string(r.Status), r.ErrorMessage, r.LatencyMS,
		r.TestedAt, string(raw), string(r.Source),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) FindResults(ctx context.Context, q repo.ResultQuery) ([]domain.HealthCheckResult, error) {
	sql := `SELECT id, service, category, status, error_message, latency_ms, tested_at, details::text, source
	          FROM health_check_results
	         WHERE ($1::timestamptz IS NULL OR tested_at >= $1)
	           AND ($2::timestamptz IS NULL OR tested_at < $2)
	           AND ($3 = '' OR source = $3)
	         ORDER BY tested_at DESC`
	args := []any{nullTime(q.From), nullTime(q.To), string(q.Source)}
	if q.Limit > 0 {
		sql += ` LIMIT $4`
		args = append(args, q.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find results: %w", err)
	}
	defer rows.Close()

	var out []domain.HealthCheckResult
	for rows.Next() {
		var (
			r       domain.HealthCheckResult
			status  string
			source  string
			details string
		)
		if err := rows.Scan(&r.ID, &r.Service, &r.Category, &status, &r.ErrorMessage,
			&r.LatencyMS, &r.TestedAt, &details, &source); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = domain.Status(status)
		r.Source = domain.Source(source)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &r.Details); err != nil {
				s.log.Warn("result_details_decode_failed", zap.String("id", r.ID), zap.Error(err))
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context, from, to time.Time) (repo.StatusCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*)
		   FROM health_check_results
		  WHERE tested_at >= $1 AND tested_at < $2
		  GROUP BY status`, from, to)
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	defer rows.Close()

	counts := repo.StatusCounts{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

// ---- SlaRepo ----

func (s *Store) UpsertReport(ctx context.Context, r *domain.SlaReport) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sla_reports
		  (year, month, total_checks, ok_checks, warning_checks, critical_checks,
		   uptime_percent, insufficient_data, window_start, window_end)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (year, month)
		DO UPDATE SET total_checks=EXCLUDED.total_checks, ok_checks=EXCLUDED.ok_checks,
		              warning_checks=EXCLUDED.warning_checks, critical_checks=EXCLUDED.critical_checks,
		              uptime_percent=EXCLUDED.uptime_percent, insufficient_data=EXCLUDED.insufficient_data,
		              window_start=EXCLUDED.window_start, window_end=EXCLUDED.window_end`,
		r.Year, r.Month, r.TotalChecks, r.OKChecks, r.WarningChecks, r.CriticalChecks,
		r.UptimePercent, r.InsufficientData, r.WindowStart, r.WindowEnd)
	if err != nil {
		return fmt.Errorf("upsert sla report: %w", err)
	}
	return nil
}

const reportColumns = `year, month, total_checks, ok_checks, warning_checks, critical_checks,
	uptime_percent, insufficient_data, window_start, window_end`

func scanReport(row pgx.Row) (domain.SlaReport, error) {
	var r domain.SlaReport
	err := row.Scan(&r.Year, &r.Month, &r.TotalChecks, &r.OKChecks, &r.WarningChecks,
		&r.CriticalChecks, &r.UptimePercent, &r.InsufficientData, &r.WindowStart, &r.WindowEnd)
	return r, err
}

func (s *Store) GetReport(ctx context.Context, year, month int) (*domain.SlaReport, error) {
	r, err := scanReport(s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM sla_reports WHERE year=$1 AND month=$2`, year, month))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sla report: %w", err)
	}
	return &r, nil
}

func (s *Store) RecentReports(ctx context.Context, limit int) ([]domain.SlaReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+`
		   FROM sla_reports
		  ORDER BY year DESC, month DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sla reports: %w", err)
	}
	defer rows.Close()

	var out []domain.SlaReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sla report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- AlertRepo ----

func (s *Store) GetAlert(ctx context.Context, service string) (*domain.AlertState, error) {
	a := domain.AlertState{Service: service}
	err := s.pool.QueryRow(ctx,
		`SELECT critical, last_sent_at FROM alert_states WHERE service=$1`, service).
		Scan(&a.Critical, &a.LastSentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

func (s *Store) SetAlert(ctx context.Context, service string, critical bool, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_states (service, critical, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (service)
		DO UPDATE SET critical=EXCLUDED.critical, last_sent_at=EXCLUDED.last_sent_at`,
		service, critical, nullTime(sentAt))
	if err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
