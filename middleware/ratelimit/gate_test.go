package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crpt-gateway/middleware/ratelimit/infra"
)

func TestGateMiddleware_PassThroughWithoutGate(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	h := GateMiddleware(GateOptions{})(next)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://example/", nil))

	if !called || w.Code != http.StatusOK {
		t.Fatalf("expected pass-through, called=%v code=%d", called, w.Code)
	}
}

func TestGateMiddleware_WaitsForWindowThenServes(t *testing.T) {
	unit := 60 * time.Millisecond
	gate, err := infra.NewSlidingWindowGate(unit, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := infra.NewMemoryStatsStore()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	h := GateMiddleware(GateOptions{Gate: gate, Stats: stats, Key: "documents", AddWaitHeader: true})(next)

	start := time.Now()
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://example/", nil))
		if w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-Admission-Wait") == "" {
			t.Fatalf("request %d: expected X-Admission-Wait header", i+1)
		}
	}
	if elapsed := time.Since(start); elapsed < unit {
		t.Fatalf("expected second request to wait for the window, took %s", elapsed)
	}
	if got := stats.Total().Admitted; got != 2 {
		t.Fatalf("expected 2 admitted events, got %d", got)
	}
}

func TestGateMiddleware_RejectsWhenWaitTimesOut(t *testing.T) {
	gate, _ := infra.NewSlidingWindowGate(time.Hour, 1)
	if !gate.TryAcquire() {
		t.Fatalf("expected to fill the window")
	}
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	h := GateMiddleware(GateOptions{
		Gate:           gate,
		Stats:          stats,
		AcquireTimeout: 20 * time.Millisecond,
	})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "http://example/", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("expected next handler not to be called")
	}
	if got := stats.Total().Cancelled; got != 1 {
		t.Fatalf("expected 1 cancelled event, got %d", got)
	}
	if got := gate.Len(); got != 1 {
		t.Fatalf("expected ledger untouched by the rejected request, got %d entries", got)
	}
}

func TestGateMiddleware_FillsRouteCounters(t *testing.T) {
	gate, _ := infra.NewSlidingWindowGate(time.Hour, 1)
	stats := infra.NewMemoryStatsStore()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	h := GateMiddleware(GateOptions{
		Gate:           gate,
		Stats:          stats,
		Key:            "documents",
		AcquireTimeout: 20 * time.Millisecond,
	})(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/api/v3/lk/documents/create", nil)
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	c := stats.ByRoute()["POST /api/v3/lk/documents/create"]
	if c.Admitted != 1 || c.Cancelled != 1 {
		t.Fatalf("expected 1 admitted and 1 cancelled on the route, got %+v", c)
	}
}
