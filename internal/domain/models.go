package domain

import (
	"strings"
	"time"
)

// Status is the three-level severity every probe result is reported on.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusWarning, StatusCritical:
		return true
	}
	return false
}

// Source tells where a health check row came from.
type Source string

const (
	SourceManual    Source = "manual"
	SourceScheduled Source = "scheduled"
	SourceUser      Source = "user"
)

// ParseSource accepts any casing and surrounding spaces.
func ParseSource(raw string) (Source, bool) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SourceManual, SourceScheduled, SourceUser:
		return s, true
	}
	return "", false
}

type FeatureFlag struct {
	Key         string    `json:"key"`
	Value       bool      `json:"value"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type HealthCheckResult struct {
	ID           string         `json:"id"`
	Service      string         `json:"service"`
	Category     string         `json:"category"`
	Status       Status         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	LatencyMS    float64        `json:"latency_ms"`
	TestedAt     time.Time      `json:"tested_at"`
	Details      map[string]any `json:"details,omitempty"`
	Source       Source         `json:"source"`
}

// SlaReport is the monthly uptime projection of the health check log.
// UptimePercent is nil when the month has no checks.
type SlaReport struct {
	Year             int       `json:"year"`
	Month            int       `json:"month"`
	TotalChecks      int       `json:"total_checks"`
	OKChecks         int       `json:"ok_checks"`
	WarningChecks    int       `json:"warning_checks"`
	CriticalChecks   int       `json:"critical_checks"`
	UptimePercent    *float64  `json:"uptime_percent"`
	InsufficientData bool      `json:"insufficient_data"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
}

// AlertState is the last notified state of one probed service.
type AlertState struct {
	Service    string
	Critical   bool
	LastSentAt *time.Time
}
