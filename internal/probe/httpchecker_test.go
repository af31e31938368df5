package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/opsboard/internal/domain"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(s.URL, 2*time.Second, Thresholds{})
	out, err := chk.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.StatusOK {
		t.Fatalf("want OK, got %+v", out)
	}
	if out.Details["status_code"] != 200 {
		t.Fatalf("want status 200, got %v", out.Details["status_code"])
	}
	if !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want message to start with 200, got %q", out.Message)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestHTTPChecker_Status500IsCritical(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out, err := NewHTTPChecker(s.URL, 2*time.Second, Thresholds{}).Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.StatusCritical {
		t.Fatalf("want CRITICAL, got %+v", out)
	}
}

func TestHTTPChecker_Status404IsWarning(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	defer s.Close()

	out, _ := NewHTTPChecker(s.URL, 2*time.Second, Thresholds{}).Check(context.Background())
	if out.Status != domain.StatusWarning {
		t.Fatalf("want WARNING, got %+v", out)
	}
}

func TestHTTPChecker_SlowResponseIsWarning(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	th := Thresholds{Warn: 10 * time.Millisecond, Critical: 10 * time.Second}
	out, err := NewHTTPChecker(s.URL, 2*time.Second, th).Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != domain.StatusWarning {
		t.Fatalf("want WARNING for slow response, got %+v", out)
	}
}

func TestHTTPChecker_TimeoutReturnsError(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	_, err := NewHTTPChecker(s.URL, 50*time.Millisecond, Thresholds{}).Check(context.Background())
	if err == nil {
		t.Fatalf("want error due to timeout")
	}
}

func TestThresholds_Classify(t *testing.T) {
	th := Thresholds{Warn: 100 * time.Millisecond, Critical: time.Second}
	cases := []struct {
		in   time.Duration
		want domain.Status
	}{
		{10 * time.Millisecond, domain.StatusOK},
		{100 * time.Millisecond, domain.StatusWarning},
		{999 * time.Millisecond, domain.StatusWarning},
		{time.Second, domain.StatusCritical},
	}
	for _, c := range cases {
		if got := th.Classify(c.in); got != c.want {
			t.Fatalf("Classify(%s)=%s want %s", c.in, got, c.want)
		}
	}
	if (Thresholds{}).Classify(time.Hour) != domain.StatusOK {
		t.Fatalf("zero thresholds should always be OK")
	}
}
