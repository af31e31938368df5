package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/opsboard/internal/domain"
)

type HTTPChecker struct {
	URL        string
	Client     *http.Client
	Thresholds Thresholds
}

func NewHTTPChecker(url string, timeout time.Duration, th Thresholds) *HTTPChecker {
	return &HTTPChecker{
		URL:        url,
		Client:     &http.Client{Timeout: timeout},
		Thresholds: th,
	}
}

// Check issues a GET. Transport errors are returned as errors; 5xx is
// CRITICAL, 4xx is WARNING, anything else is graded by latency.
func (h *HTTPChecker) Check(ctx context.Context) (Outcome, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Outcome{LatencyMS: ms(latency)}, err
	}
	defer resp.Body.Close()

	out := Outcome{
		Message:   resp.Status,
		LatencyMS: ms(latency),
		Details:   map[string]any{"status_code": resp.StatusCode, "url": h.URL},
	}
	switch {
	case resp.StatusCode >= 500:
		out.Status = domain.StatusCritical
	case resp.StatusCode >= 400:
		out.Status = domain.StatusWarning
	default:
		out.Status = h.Thresholds.Classify(latency)
	}
	return out, nil
}
