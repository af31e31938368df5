package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_RunSendsSourceAndKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/run" || r.Header.Get("X-API-Key") != "adm" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var p map[string]string
		_ = json.NewDecoder(r.Body).Decode(&p)
		if p["source"] != "scheduled" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"total":2,"ok":1,"warnings":0,"critical":1,"results":[{"service":"db","status":"OK"},{"service":"s3","status":"CRITICAL","error_message":"refused"}]}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, key: "adm", http: ts.Client(), attempts: 1}
	sum, err := c.run(context.Background(), "scheduled")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Total != 2 || sum.Critical != 1 || sum.Results[1].ErrorMessage != "refused" {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"total":0,"ok":0,"warnings":0,"critical":0,"results":[]}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client(), attempts: 3, delay: time.Millisecond}
	if _, err := c.run(context.Background(), "scheduled"); err != nil {
		t.Fatalf("want success on third attempt: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("want 3 calls, got %d", n)
	}
}

func TestClient_ClientErrorsAreFinal(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client(), attempts: 5, delay: time.Millisecond}
	_, err := c.run(context.Background(), "scheduled")
	if err == nil || !strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("want forbidden error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", n)
	}
}

func TestClient_InternalErrorIsNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"persist results"}`))
	}))
	defer ts.Close()

	c := &client{base: ts.URL, http: ts.Client(), attempts: 5, delay: time.Millisecond}
	_, err := c.run(context.Background(), "scheduled")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("want 500 error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("a 500 may follow a stored run and must not be retried, got %d calls", n)
	}
}
