package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/hamed0406/opsboard/internal/domain"
)

// RetryChecker re-runs Inner while it errors or reports CRITICAL.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
	Clock    clock.Clock
}

func (r *RetryChecker) Check(ctx context.Context) (Outcome, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	var (
		last    Outcome
		lastErr error
	)
	for i := 0; i < attempts; i++ {
		last, lastErr = r.Inner.Check(ctx)
		if lastErr == nil && last.Status != domain.StatusCritical {
			return last, nil
		}
		if i < attempts-1 && r.Backoff > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-clk.After(r.Backoff):
			}
		}
	}
	// annotate so you can see it was a retry series
	if lastErr != nil {
		return last, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
	}
	last.Message = fmt.Sprintf("%s (after %d attempts)", last.Message, attempts)
	return last, nil
}
