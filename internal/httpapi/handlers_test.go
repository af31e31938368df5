package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"go.uber.org/zap"

	"github.com/hamed0406/opsboard/internal/domain"
	"github.com/hamed0406/opsboard/internal/flags"
	"github.com/hamed0406/opsboard/internal/health"
	apimw "github.com/hamed0406/opsboard/internal/httpapi/middleware"
	"github.com/hamed0406/opsboard/internal/metrics"
	"github.com/hamed0406/opsboard/internal/probe"
	"github.com/hamed0406/opsboard/internal/repo/memory"
	"github.com/hamed0406/opsboard/internal/sla"
)

// ---- test helpers ----

type fixture struct {
	ts    *httptest.Server
	store *memory.Store
	clock *testclock.Clock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	clk := testclock.NewClock(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	m := metrics.NewCollector()

	reg := probe.NewRegistry(log, m, time.Second, 2)
	_ = reg.Register("db", "database", probe.Func(func(ctx context.Context) (probe.Outcome, error) {
		return probe.Outcome{Status: domain.StatusOK, LatencyMS: 2}, nil
	}))
	_ = reg.Register("search", "web", probe.Func(func(ctx context.Context) (probe.Outcome, error) {
		return probe.Outcome{Status: domain.StatusWarning, Message: "slow"}, nil
	}))
	_ = reg.Register("s3", "storage", probe.Func(func(ctx context.Context) (probe.Outcome, error) {
		return probe.Outcome{}, errors.New("connection refused")
	}))

	fs := flags.New(flags.Config{Loader: store, Clock: clk, Logger: log, Metrics: m})
	agg := health.NewAggregator(reg, store, nil, clk, log)
	svc := sla.NewService(store, store, clk, time.UTC, log)

	srv := NewServer(log, fs, store, agg, svc, nil, clk)
	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	ts := httptest.NewServer(srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000))
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: store, clock: clk}
}

func (f *fixture) do(t *testing.T, method, path, key, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req, _ := http.NewRequest(method, f.ts.URL+path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	f := setup(t)
	code, body := f.do(t, http.MethodGet, "/healthz", "", "")
	if code != 200 || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}
}

func TestRun_SummaryAndPersistence(t *testing.T) {
	f := setup(t)
	code, body := f.do(t, http.MethodPost, "/health/run", "adm_test", `{"source":"scheduled"}`)
	if code != 200 {
		t.Fatalf("want 200, got %d: %s", code, body)
	}
	var sum struct {
		Total    int `json:"total"`
		OK       int `json:"ok"`
		Warnings int `json:"warnings"`
		Critical int `json:"critical"`
		Results  []struct {
			Service      string `json:"service"`
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
			Source       string `json:"source"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Total != 3 || sum.OK != 1 || sum.Warnings != 1 || sum.Critical != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Results[2].Service != "s3" || !strings.Contains(sum.Results[2].ErrorMessage, "connection refused") {
		t.Fatalf("critical result not reported: %+v", sum.Results[2])
	}
	if sum.Results[0].Source != "scheduled" {
		t.Fatalf("source not applied: %+v", sum.Results[0])
	}

	// empty body defaults to manual
	code, body = f.do(t, http.MethodPost, "/health/run", "adm_test", "")
	if code != 200 || !strings.Contains(string(body), `"source":"manual"`) {
		t.Fatalf("empty body run: %d %s", code, body)
	}
}

func TestRun_RejectsBadSourceAndNonAdmin(t *testing.T) {
	f := setup(t)
	if code, _ := f.do(t, http.MethodPost, "/health/run", "adm_test", `{"source":"user"}`); code != 400 {
		t.Fatalf("user source should be 400, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/health/run", "adm_test", `{"source":`); code != 400 {
		t.Fatalf("malformed body should be 400, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/health/run", "pub_test", ""); code != 403 {
		t.Fatalf("public key should be 403, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/health/run", "", ""); code != 401 {
		t.Fatalf("missing key should be 401, got %d", code)
	}
}

func TestSLA_UpsertAndList(t *testing.T) {
	f := setup(t)
	if code, _ := f.do(t, http.MethodPost, "/health/run", "adm_test", ""); code != 200 {
		t.Fatalf("run failed: %d", code)
	}

	code, body := f.do(t, http.MethodPost, "/health/sla", "adm_test", `{"year":2025,"month":3}`)
	if code != 200 {
		t.Fatalf("upsert: %d %s", code, body)
	}
	var rep domain.SlaReport
	_ = json.Unmarshal(body, &rep)
	if rep.TotalChecks != 3 || rep.UptimePercent == nil || *rep.UptimePercent != 66.67 {
		t.Fatalf("unexpected report %+v", rep)
	}

	code, body = f.do(t, http.MethodGet, "/health/sla?limit=5", "pub_test", "")
	if code != 200 {
		t.Fatalf("list: %d %s", code, body)
	}
	var list struct {
		Reports []domain.SlaReport `json:"reports"`
		Current domain.SlaReport   `json:"current"`
	}
	_ = json.Unmarshal(body, &list)
	if len(list.Reports) != 1 || list.Current.Month != 3 || list.Current.TotalChecks != 3 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestSLA_InvalidPeriodIs400(t *testing.T) {
	f := setup(t)
	for _, body := range []string{`{"year":2025,"month":13}`, `{"year":2025,"month":0}`, `{"year":1900,"month":1}`, `{}`, `nope`} {
		code, resp := f.do(t, http.MethodPost, "/health/sla", "adm_test", body)
		if code != 400 {
			t.Fatalf("%s: want 400, got %d", body, code)
		}
		if !strings.Contains(string(resp), `"error"`) {
			t.Fatalf("%s: want error body, got %s", body, resp)
		}
	}
	if reps, _ := f.store.RecentReports(context.Background(), 10); len(reps) != 0 {
		t.Fatalf("nothing should be stored")
	}
	if code, _ := f.do(t, http.MethodGet, "/health/sla?limit=abc", "pub_test", ""); code != 400 {
		t.Fatalf("bad limit should be 400, got %d", code)
	}
}

func TestSLA_EmptyMonthIsInsufficientData(t *testing.T) {
	f := setup(t)
	code, body := f.do(t, http.MethodPost, "/health/sla", "adm_test", `{"year":2024,"month":2}`)
	if code != 200 {
		t.Fatalf("upsert: %d", code)
	}
	if !strings.Contains(string(body), `"uptime_percent":null`) || !strings.Contains(string(body), `"insufficient_data":true`) {
		t.Fatalf("want insufficient data, got %s", body)
	}
}

func TestErrors_ReportAndDigest(t *testing.T) {
	f := setup(t)
	code, body := f.do(t, http.MethodPost, "/health/errors", "pub_test", `{"service":"checkout","category":"payments","message":"card form frozen"}`)
	if code != 201 {
		t.Fatalf("report: %d %s", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/health/errors", "pub_test", `{"service":"checkout"}`); code != 400 {
		t.Fatalf("missing message should be 400, got %d", code)
	}

	// scheduled rows are not part of the digest
	f.do(t, http.MethodPost, "/health/run", "adm_test", "")

	code, body = f.do(t, http.MethodGet, "/health/errors", "adm_test", "")
	if code != 200 {
		t.Fatalf("digest: %d %s", code, body)
	}
	var d struct {
		Total      int            `json:"total"`
		ByCategory map[string]int `json:"by_category"`
	}
	_ = json.Unmarshal(body, &d)
	if d.Total != 1 || d.ByCategory["payments"] != 1 {
		t.Fatalf("unexpected digest %+v", d)
	}

	if code, _ := f.do(t, http.MethodGet, "/health/errors", "pub_test", ""); code != 403 {
		t.Fatalf("digest is admin only, got %d", code)
	}
}

func TestFlags_PutGetInvalidate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	code, body := f.do(t, http.MethodGet, "/api/flags/isSmartMatchingEnabled", "pub_test", "")
	if code != 200 || !strings.Contains(string(body), `"value":false`) {
		t.Fatalf("unknown flag should be false: %d %s", code, body)
	}

	code, body = f.do(t, http.MethodPut, "/api/flags/isSmartMatchingEnabled", "adm_test", `{"value":true,"category":"matching"}`)
	if code != 200 {
		t.Fatalf("put: %d %s", code, body)
	}
	code, body = f.do(t, http.MethodGet, "/api/flags/isSmartMatchingEnabled", "pub_test", "")
	if code != 200 || !strings.Contains(string(body), `"value":true`) || !strings.Contains(string(body), `"state":"fresh"`) {
		t.Fatalf("put should be visible right away: %s", body)
	}

	// A write that bypasses the API is only seen after the TTL or an invalidate.
	_ = f.store.UpsertFlag(ctx, &domain.FeatureFlag{Key: "isSmartMatchingEnabled", Value: false})
	_, body = f.do(t, http.MethodGet, "/api/flags/isSmartMatchingEnabled", "pub_test", "")
	if !strings.Contains(string(body), `"value":true`) {
		t.Fatalf("cache should still serve true: %s", body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/flags/invalidate", "adm_test", ""); code != 200 {
		t.Fatalf("invalidate: %d", code)
	}
	_, body = f.do(t, http.MethodGet, "/api/flags", "pub_test", "")
	if !strings.Contains(string(body), `"isSmartMatchingEnabled":false`) {
		t.Fatalf("want reloaded snapshot, got %s", body)
	}
}

func TestFlags_PutStampsServerClock(t *testing.T) {
	f := setup(t)
	f.clock.Advance(90 * time.Second)

	if code, body := f.do(t, http.MethodPut, "/api/flags/offers", "adm_test", `{"value":true}`); code != 200 {
		t.Fatalf("put: %d %s", code, body)
	}
	got, err := f.store.GetFlag(context.Background(), "offers")
	if err != nil || got == nil {
		t.Fatalf("GetFlag: %+v %v", got, err)
	}
	want := time.Date(2025, 3, 14, 12, 1, 30, 0, time.UTC)
	if !got.UpdatedAt.Equal(want) {
		t.Fatalf("UpdatedAt = %v, want %v", got.UpdatedAt, want)
	}
}

func TestFlags_Validation(t *testing.T) {
	f := setup(t)
	if code, _ := f.do(t, http.MethodPut, "/api/flags/offers", "adm_test", `{"description":"no value"}`); code != 400 {
		t.Fatalf("missing value should be 400, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPut, "/api/flags/bad%20key", "adm_test", `{"value":true}`); code != 400 {
		t.Fatalf("bad key should be 400, got %d", code)
	}
	if code, _ := f.do(t, http.MethodPut, "/api/flags/offers", "pub_test", `{"value":true}`); code != 403 {
		t.Fatalf("public key cannot write flags, got %d", code)
	}
}
