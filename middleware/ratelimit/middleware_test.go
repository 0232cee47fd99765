package ratelimit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
	"crpt-gateway/middleware/ratelimit/infra"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Store:               store,
		RejectStatus:        http.StatusTooManyRequests,
		RetryAfter:          1 * time.Second,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	r1 := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got == "" {
		t.Fatalf("expected X-RateLimit-Key header to be set")
	}
	if got := w1.Header().Get("X-RateLimit-RPS"); got == "" {
		t.Fatalf("expected X-RateLimit-RPS header to be set")
	}
	if got := w1.Header().Get("X-RateLimit-Burst"); got == "" {
		t.Fatalf("expected X-RateLimit-Burst header to be set")
	}

	// 2) segunda deve bloquear (burst=1 e rps bem baixo)
	r2 := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		KeyHeader:  "X-Api-Key",
		RetryAfter: 1 * time.Second,
	})(next)

	// duas chaves diferentes => ambos devem passar (cada chave tem seu próprio limiter)
	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.Header.Set("X-Api-Key", "k1")
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k1, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.Header.Set("X-Api-Key", "k2")
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for key k2, got %d", w2.Code)
	}
}

func TestMiddleware_RetryAfterUsesSeconds(t *testing.T) {
	store := infra.NewStore(0.02, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:      store,
		RetryAfter: 2500 * time.Millisecond,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := strings.TrimSpace(w2.Header().Get("Retry-After")); got != "2" {
		// int(2.5s.Seconds()) == 2
		t.Fatalf("expected Retry-After=2, got %q", got)
	}
}

func TestMiddleware_SlidingWindowStoreAndStats(t *testing.T) {
	store, err := infra.NewWindowStore(domain.Window{Unit: time.Hour, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := infra.NewMemoryStatsStore()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store, Stats: stats, AddRateLimitHeaders: true})(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/api", nil)
		r.RemoteAddr = "10.0.0.7:4000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
		if got := w.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("expected X-RateLimit-Limit=2, got %q", got)
		}
		if got := w.Header().Get("X-RateLimit-Window"); got != "3600" {
			t.Fatalf("expected X-RateLimit-Window=3600, got %q", got)
		}
		if got := w.Header().Get("X-RateLimit-RPS"); got != "" {
			t.Fatalf("expected no X-RateLimit-RPS for a sliding window, got %q", got)
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 200 429], got %v", codes)
	}
	total := stats.Total()
	if total.Admitted != 2 || total.Denied != 1 {
		t.Fatalf("unexpected stats: %+v", total)
	}
	if c := stats.ByRoute()["POST /api"]; c.Admitted != 2 || c.Denied != 1 {
		t.Fatalf("unexpected route stats: %+v", c)
	}
}

func TestMiddleware_LogsDenialWithRouteAndLimiterKind(t *testing.T) {
	store, err := infra.NewWindowStore(domain.Window{Unit: time.Hour, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger, hook := test.NewNullLogger()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store, Logger: logger})(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/api/v3/lk/documents/create", nil)
		r.RemoteAddr = "10.0.0.8:4000"
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected only the denial to be logged, got %d entries", len(entries))
	}
	e := entries[0]
	if e.Level != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", e.Level)
	}
	if e.Data["limiter"] != "window" || e.Data["method"] != http.MethodPost || e.Data["path"] != "/api/v3/lk/documents/create" || e.Data["key"] != "10.0.0.8" {
		t.Fatalf("unexpected log fields: %+v", e.Data)
	}
}

func TestMiddleware_TokenStoreLogsTokenKind(t *testing.T) {
	logger, hook := test.NewNullLogger()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: infra.NewStore(0.02, 1), Logger: logger})(next)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	if last := hook.LastEntry(); last == nil || last.Data["limiter"] != "token" {
		t.Fatalf("expected a denial logged with limiter=token, got %+v", last)
	}
}
