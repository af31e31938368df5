package probe

import (
	"context"
	"time"

	"github.com/hamed0406/opsboard/internal/domain"
)

// Outcome is what a single checker reports about its dependency.
type Outcome struct {
	Status    domain.Status
	Message   string
	LatencyMS float64
	Details   map[string]any
}

// Result is an Outcome labelled with the registered probe it came from.
type Result struct {
	Service   string         `json:"service"`
	Category  string         `json:"category"`
	Status    domain.Status  `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMS float64        `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

// Checker checks one dependency. A returned error is reported as CRITICAL.
type Checker interface {
	Check(ctx context.Context) (Outcome, error)
}

// Func adapts a plain function to Checker.
type Func func(ctx context.Context) (Outcome, error)

func (f Func) Check(ctx context.Context) (Outcome, error) { return f(ctx) }

// Thresholds are latency bands. A zero band is disabled.
type Thresholds struct {
	Warn     time.Duration
	Critical time.Duration
}

// Classify maps a latency onto a status.
func (t Thresholds) Classify(latency time.Duration) domain.Status {
	if t.Critical > 0 && latency >= t.Critical {
		return domain.StatusCritical
	}
	if t.Warn > 0 && latency >= t.Warn {
		return domain.StatusWarning
	}
	return domain.StatusOK
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
