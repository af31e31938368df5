package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/repo"
)

// Store keeps every table in process memory. Used when DATABASE_URL is empty
// and in tests.
type Store struct {
	mu      sync.RWMutex
	flags   map[string]domain.FeatureFlag
	results []domain.HealthCheckResult
	reports map[monthKey]domain.SlaReport
	alerts  map[string]domain.AlertState
}

type monthKey struct{ year, month int }

func New() *Store {
	return &Store{
		flags:   make(map[string]domain.FeatureFlag),
		results: make([]domain.HealthCheckResult, 0, 128),
		reports: make(map[monthKey]domain.SlaReport),
		alerts:  make(map[string]domain.AlertState),
	}
}

// ---- FlagRepo ----

func (m *Store) AllFlags(ctx context.Context) ([]domain.FeatureFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Store) GetFlag(ctx context.Context, key string) (*domain.FeatureFlag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flags[key]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (m *Store) UpsertFlag(ctx context.Context, f *domain.FeatureFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	m.flags[f.Key] = *f
	return nil
}

// ---- ResultRepo ----

func (m *Store) AppendResult(ctx context.Context, r *domain.HealthCheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	if r.Details != nil {
		cp.Details = make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			cp.Details[k] = v
		}
	}
	m.results = append(m.results, cp)
	return nil
}

func (m *Store) FindResults(ctx context.Context, q repo.ResultQuery) ([]domain.HealthCheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.HealthCheckResult
	for _, r := range m.results {
		if !inWindow(r.TestedAt, q.From, q.To) {
			continue
		}
		if q.Source != "" && r.Source != q.Source {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TestedAt.After(out[j].TestedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Store) CountByStatus(ctx context.Context, from, to time.Time) (repo.StatusCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := repo.StatusCounts{}
	for _, r := range m.results {
		if inWindow(r.TestedAt, from, to) {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// ---- SlaRepo ----

func (m *Store) UpsertReport(ctx context.Context, r *domain.SlaReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	if r.UptimePercent != nil {
		v := *r.UptimePercent
		cp.UptimePercent = &v
	}
	m.reports[monthKey{r.Year, r.Month}] = cp
	return nil
}

func (m *Store) GetReport(ctx context.Context, year, month int) (*domain.SlaReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[monthKey{year, month}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) RecentReports(ctx context.Context, limit int) ([]domain.SlaReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SlaReport, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- AlertRepo ----

func (m *Store) GetAlert(ctx context.Context, service string) (*domain.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[service]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Store) SetAlert(ctx context.Context, service string, critical bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[service] = domain.AlertState{Service: service, Critical: critical, LastSentAt: ts}
	return nil
}
