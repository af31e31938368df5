package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

type runResult struct {
	Service      string `json:"service"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type runSummary struct {
	Total    int         `json:"total"`
	OK       int         `json:"ok"`
	Warnings int         `json:"warnings"`
	Critical int         `json:"critical"`
	Results  []runResult `json:"results"`
}

// finalError stops the retry loop.
type finalError struct{ err error }

func (f *finalError) Error() string { return f.err.Error() }
func (f *finalError) Unwrap() error { return f.err }

func isFinal(err error) bool {
	var f *finalError
	return errors.As(err, &f)
}

// retryableStatus is true when the request never reached the run.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type client struct {
	base     string
	key      string
	http     *http.Client
	attempts int
	delay    time.Duration // first retry delay, doubled each attempt
	clock    clock.Clock
}

// run POSTs /health/run. Connection errors and gateway answers (502, 503,
// 504) are retried with a doubling delay. A 500 may come after the run
// already stored results, so it is final like any other non-200.
func (c *client) run(ctx context.Context, source string) (runSummary, error) {
	body, err := json.Marshal(map[string]string{"source": source})
	if err != nil {
		return runSummary{}, err
	}

	var sum runSummary
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/health/run", bytes.NewReader(body))
		if err != nil {
			return &finalError{err}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.key != "" {
			req.Header.Set("X-API-Key", c.key)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("contact API: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case retryableStatus(resp.StatusCode):
			return fmt.Errorf("API returned %s", resp.Status)
		case resp.StatusCode != http.StatusOK:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &finalError{fmt.Errorf("API returned %s: %s", resp.Status, bytes.TrimSpace(msg))}
		}
		if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
			return &finalError{fmt.Errorf("decode run summary: %w", err)}
		}
		return nil
	}

	attempts := c.attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.delay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	clk := c.clock
	if clk == nil {
		clk = clock.WallClock
	}

	err = retry.Call(retry.CallArgs{
		Func:         call,
		IsFatalError: isFinal,
		NotifyFunc: func(err error, attempt int) {
			fmt.Printf("… attempt %d failed: %v\n", attempt, err)
		},
		Attempts:    attempts,
		Delay:       delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clk,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		return runSummary{}, retry.LastError(err)
	}
	if err != nil {
		return runSummary{}, err
	}
	return sum, nil
}
