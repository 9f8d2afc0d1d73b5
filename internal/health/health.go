// Package health serves liveness and readiness probes on the metrics
// listener.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered [Checker] passes.
//
// Responses are JSON with a top-level "status" ("ok" or "fail") and a
// per-check "checks" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 5 * time.Second

// Checker is one named readiness probe. Check returns nil when the
// dependency is healthy.
type Checker struct {
	// Name keys the check in the JSON response (e.g. "history", "timers").
	Name string

	// Check probes the dependency and must respect ctx cancellation.
	Check func(ctx context.Context) error
}

// StoreChecker adapts a store probe function into a named [Checker]. The
// probe is typically a cheap read against the backing store.
func StoreChecker(name string, probe func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: probe}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates a fixed set of checkers per /readyz request. Safe for
// concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler over checkers, evaluated sequentially in order.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 only when every checker passes, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ok := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ok = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ok {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
