package probe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
)

func okProbe(status domain.Status) Func {
	return func(ctx context.Context) (Outcome, error) {
		return Outcome{Status: status, Message: string(status)}, nil
	}
}

func TestRegistry_RunAllKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil, time.Second, 4)
	names := []string{"db", "cache", "web", "dns", "s3"}
	for i, n := range names {
		delay := time.Duration(len(names)-i) * 5 * time.Millisecond
		if err := r.Register(n, "infra", Func(func(ctx context.Context) (Outcome, error) {
			time.Sleep(delay)
			return Outcome{Status: domain.StatusOK}, nil
		})); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	got := r.RunAll(context.Background())
	if len(got) != len(names) {
		t.Fatalf("want %d results, got %d", len(names), len(got))
	}
	for i, res := range got {
		if res.Service != names[i] {
			t.Fatalf("result %d: want %s, got %s", i, names[i], res.Service)
		}
		if res.Category != "infra" {
			t.Fatalf("category not carried: %+v", res)
		}
	}
}

func TestRegistry_EveryFailureBecomesCritical(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil, 50*time.Millisecond, 2)
	_ = r.Register("errors", "a", Func(func(ctx context.Context) (Outcome, error) {
		return Outcome{}, errors.New("connection refused")
	}))
	_ = r.Register("panics", "a", Func(func(ctx context.Context) (Outcome, error) {
		panic("nil map")
	}))
	_ = r.Register("hangs", "a", Func(func(ctx context.Context) (Outcome, error) {
		time.Sleep(time.Second)
		return Outcome{Status: domain.StatusOK}, nil
	}))
	_ = r.Register("bogus", "a", okProbe("DOWN"))

	got := r.RunAll(context.Background())
	if len(got) != 4 {
		t.Fatalf("want 4 results even if every probe fails, got %d", len(got))
	}
	for _, res := range got {
		if res.Status != domain.StatusCritical {
			t.Fatalf("%s: want CRITICAL, got %+v", res.Service, res)
		}
		if res.Message == "" {
			t.Fatalf("%s: want error message", res.Service)
		}
	}
	if !strings.Contains(got[0].Message, "connection refused") {
		t.Fatalf("error message not carried: %q", got[0].Message)
	}
	if !strings.Contains(got[1].Message, "panicked") {
		t.Fatalf("panic not reported: %q", got[1].Message)
	}
	if !strings.Contains(got[2].Message, "timed out") {
		t.Fatalf("timeout not reported: %q", got[2].Message)
	}
}

func TestRegistry_MixedStatuses(t *testing.T) {
	r := NewRegistry(nil, nil, time.Second, 1)
	_ = r.Register("a", "x", okProbe(domain.StatusOK))
	_ = r.Register("b", "x", okProbe(domain.StatusWarning))
	_ = r.Register("c", "x", okProbe(""))

	got := r.RunAll(context.Background())
	if got[0].Status != domain.StatusOK || got[1].Status != domain.StatusWarning || got[2].Status != domain.StatusOK {
		t.Fatalf("unexpected statuses: %+v", got)
	}
}

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := NewRegistry(nil, nil, 0, 0)
	if err := r.Register("db", "infra", okProbe(domain.StatusOK)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("db", "infra", okProbe(domain.StatusOK)); !errors.Is(err, ErrDuplicateProbe) {
		t.Fatalf("want ErrDuplicateProbe, got %v", err)
	}
	if err := r.Register("", "infra", okProbe(domain.StatusOK)); err == nil {
		t.Fatalf("want error for empty name")
	}
	_ = r.Register("web", "edge", okProbe(domain.StatusOK))

	if !r.Unregister("db") || r.Unregister("db") {
		t.Fatalf("Unregister should succeed once")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "web" {
		t.Fatalf("unexpected names: %v", names)
	}
	if got := r.RunAll(context.Background()); len(got) != 1 {
		t.Fatalf("want 1 result, got %d", len(got))
	}
}

func TestRegistry_EmptyRunsNothing(t *testing.T) {
	r := NewRegistry(nil, nil, time.Second, 2)
	if got := r.RunAll(context.Background()); len(got) != 0 {
		t.Fatalf("want no results, got %v", got)
	}
}
