package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"crpt-gateway/middleware/ratelimit/application"
	"crpt-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

// KeyFunc extrai do request a chave do cliente de entrada.
type KeyFunc func(r *http.Request) string

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	Logger              logrus.FieldLogger
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// tokenInfo e windowInfo são opcionais no Store; infra.Store implementa os dois.
type tokenInfo interface {
	RPS() float64
	Burst() int
}

type windowInfo interface {
	Window() (domain.Window, bool)
}

type kindInfo interface {
	Kind() string
}

// DefaultKeyFunc usa, nesta ordem: o header keyHeader, o primeiro IP do
// X-Forwarded-For (se trustXFF) e o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return "unknown"
	}
}

// Middleware aplica o limite de entrada por cliente: decide na hora e responde
// RejectStatus (429) com Retry-After quando bloqueia. Não espera vaga; para isso use GateMiddleware.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	kind := "custom"
	if ki, ok := opts.Store.(kindInfo); ok {
		kind = ki.Kind()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w.Header(), opts.Store, key)
			}

			dec := svc.Decide(key)
			ev := domain.StatsEvent{
				Key:     key,
				Outcome: dec.Outcome(),
				Method:  r.Method,
				Path:    r.URL.Path,
				At:      time.Now(),
			}
			if opts.Stats != nil {
				if err := opts.Stats.Record(context.WithoutCancel(r.Context()), ev); err != nil && opts.Logger != nil {
					opts.Logger.WithError(err).Warn("ratelimit: stats record failed")
				}
			}

			if !dec.Allowed {
				if opts.Logger != nil {
					opts.Logger.WithFields(logrus.Fields{
						"module":      "ratelimit",
						"key":         string(key),
						"method":      ev.Method,
						"path":        ev.Path,
						"limiter":     kind,
						"retry_after": dec.RetryAfter.String(),
					}).Infof("ratelimit: denied [key: %s]", key)
				}
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders anuncia o limite no formato da estratégia: Limit/Window para
// janela deslizante, RPS/Burst para token bucket.
func setRateLimitHeaders(h http.Header, store domain.LimiterStore, key domain.Key) {
	h.Set("X-RateLimit-Key", string(key))

	if wi, ok := store.(windowInfo); ok {
		if win, ok := wi.Window(); ok {
			h.Set("X-RateLimit-Limit", formatInt(win.Limit))
			h.Set("X-RateLimit-Window", formatFloat(win.Unit.Seconds()))
			return
		}
	}
	if ti, ok := store.(tokenInfo); ok {
		h.Set("X-RateLimit-RPS", formatFloat(ti.RPS()))
		h.Set("X-RateLimit-Burst", formatInt(ti.Burst()))
	}
}
