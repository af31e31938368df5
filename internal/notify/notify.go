package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
)

// Alert is one service transition worth telling someone about.
type Alert struct {
	Service   string
	Category  string
	Status    domain.Status
	Reason    string
	LatencyMS float64
	CheckedAt time.Time
}

// Down is true for a CRITICAL alert, false for a recovery.
func (a Alert) Down() bool { return a.Status == domain.StatusCritical }

func (a Alert) Title() string {
	if a.Down() {
		return "🔴 Service DOWN"
	}
	return "🟢 Service RECOVERED"
}

func (a Alert) reason() string {
	if a.Reason == "" {
		return "n/a"
	}
	return a.Reason
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi fans out to every notifier and returns all failures combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, a))
	}
	return err
}

// Log writes alerts to the application log, so they are visible even
// without a webhook configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(ctx context.Context, a Alert) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Warn("alert",
		zap.String("title", a.Title()),
		zap.String("service", a.Service),
		zap.String("category", a.Category),
		zap.String("status", string(a.Status)),
		zap.Float64("latency_ms", a.LatencyMS),
		zap.String("reason", a.reason()),
		zap.Time("checked_at", a.CheckedAt),
	)
	return nil
}
