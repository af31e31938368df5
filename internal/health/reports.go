package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
)

var ErrInvalidReport = errors.New("invalid error report")

const (
	maxServiceLen  = 100
	maxCategoryLen = 50
	maxMessageLen  = 2000
)

// UserReport is an error reported by a client of the marketplace.
type UserReport struct {
	Service  string         `json:"service"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Severity domain.Status  `json:"severity"`
	Details  map[string]any `json:"details"`
}

func (r *UserReport) normalize() error {
	r.Service = strings.TrimSpace(r.Service)
	r.Category = strings.TrimSpace(r.Category)
	r.Message = strings.TrimSpace(r.Message)
	r.Severity = domain.Status(strings.ToUpper(string(r.Severity)))

	switch {
	case r.Service == "":
		return fmt.Errorf("%w: service is required", ErrInvalidReport)
	case utf8.RuneCountInString(r.Service) > maxServiceLen:
		return fmt.Errorf("%w: service longer than %d characters", ErrInvalidReport, maxServiceLen)
	case utf8.RuneCountInString(r.Category) > maxCategoryLen:
		return fmt.Errorf("%w: category longer than %d characters", ErrInvalidReport, maxCategoryLen)
	case r.Message == "":
		return fmt.Errorf("%w: message is required", ErrInvalidReport)
	case utf8.RuneCountInString(r.Message) > maxMessageLen:
		return fmt.Errorf("%w: message longer than %d characters", ErrInvalidReport, maxMessageLen)
	}

	if r.Category == "" {
		r.Category = "general"
	}
	switch r.Severity {
	case "":
		r.Severity = domain.StatusCritical
	case domain.StatusWarning, domain.StatusCritical:
	default:
		return fmt.Errorf("%w: severity must be WARNING or CRITICAL", ErrInvalidReport)
	}
	return nil
}

// ReportError validates a user report and appends it with source=user.
func (a *Aggregator) ReportError(ctx context.Context, rep UserReport) (domain.HealthCheckResult, error) {
	if err := rep.normalize(); err != nil {
		return domain.HealthCheckResult{}, err
	}
	row := domain.HealthCheckResult{
		ID:           a.newID(),
		Service:      rep.Service,
		Category:     rep.Category,
		Status:       rep.Severity,
		ErrorMessage: rep.Message,
		TestedAt:     a.clock.Now().UTC(),
		Details:      rep.Details,
		Source:       domain.SourceUser,
	}
	if err := a.results.AppendResult(ctx, &row); err != nil {
		return domain.HealthCheckResult{}, fmt.Errorf("persist user report: %w", err)
	}
	a.log.Info("user_error_reported",
		zap.String("service", row.Service),
		zap.String("category", row.Category),
		zap.String("severity", string(row.Status)),
	)
	return row, nil
}
