// Package alert notifies on CRITICAL transitions of probed services.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/notify"
	"github.com/hamed0406/opsboard/internal/repo"
)

type Config struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

type Alerter struct {
	states   repo.AlertRepo
	notifier notify.Notifier
	clock    clock.Clock
	log      *zap.Logger
	cfg      Config
}

func New(states repo.AlertRepo, notifier notify.Notifier, clk clock.Clock, log *zap.Logger, cfg Config) *Alerter {
	if clk == nil {
		clk = clock.WallClock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{states: states, notifier: notifier, clock: clk, log: log, cfg: cfg}
}

// Evaluate compares each result with the last recorded state of its service
// and sends at most one notification per service. It returns the number of
// notifications sent. Send failures are logged and do not stop the pass.
func (a *Alerter) Evaluate(ctx context.Context, results []domain.HealthCheckResult) (int, error) {
	now := a.clock.Now()
	sent := 0

	for _, r := range results {
		critical := r.Status == domain.StatusCritical

		rec, err := a.states.GetAlert(ctx, r.Service)
		if err != nil {
			return sent, fmt.Errorf("load alert state %s: %w", r.Service, err)
		}

		// A service seen for the first time only counts as a change when it is down.
		stateChanged := (rec == nil && critical) || (rec != nil && rec.Critical != critical)

		// Cooldown only suppresses repeated DOWN alerts.
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		downAlert := stateChanged && critical && cooled
		recoveryAlert := stateChanged && !critical && a.cfg.AlertOnRecovery

		if downAlert || recoveryAlert {
			if a.notifier != nil {
				if err := a.notifier.Send(ctx, alertFor(r)); err != nil {
					a.log.Warn("alert_send_failed", zap.String("service", r.Service), zap.Error(err))
				} else {
					sent++
				}
			}
			if err := a.states.SetAlert(ctx, r.Service, critical, now); err != nil {
				return sent, fmt.Errorf("store alert state %s: %w", r.Service, err)
			}
			continue
		}

		// Record the new state without a send time (DOWN inside the cooldown,
		// recovery alerts disabled, or a first healthy sighting).
		if rec == nil || stateChanged {
			var sentAt time.Time
			if rec != nil && rec.LastSentAt != nil {
				sentAt = *rec.LastSentAt
			}
			if err := a.states.SetAlert(ctx, r.Service, critical, sentAt); err != nil {
				return sent, fmt.Errorf("store alert state %s: %w", r.Service, err)
			}
		}
	}
	return sent, nil
}

func alertFor(r domain.HealthCheckResult) notify.Alert {
	return notify.Alert{
		Service:   r.Service,
		Category:  r.Category,
		Status:    r.Status,
		Reason:    r.ErrorMessage,
		LatencyMS: r.LatencyMS,
		CheckedAt: r.TestedAt,
	}
}
