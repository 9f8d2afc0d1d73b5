package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()
	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("status field = %q, want ok", res.Status)
	}
}

func TestReadyzAllPass(t *testing.T) {
	t.Parallel()
	h := New(
		StoreChecker("history", func(context.Context) error { return nil }),
		StoreChecker("timers", func(context.Context) error { return nil }),
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Checks["history"] != "ok" || res.Checks["timers"] != "ok" {
		t.Errorf("checks = %v, want both ok", res.Checks)
	}
}

func TestReadyzFailingCheck(t *testing.T) {
	t.Parallel()
	h := New(
		StoreChecker("history", func(context.Context) error { return nil }),
		StoreChecker("timers", func(context.Context) error { return errors.New("connection refused") }),
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != "fail" {
		t.Errorf("status field = %q, want fail", res.Status)
	}
	if res.Checks["timers"] != "fail: connection refused" {
		t.Errorf("timers check = %q", res.Checks["timers"])
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New().Register(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}
}
