package ratelimit

import (
	"context"
	"net/http"
	"time"

	"crpt-gateway/middleware/ratelimit/application"
	"crpt-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

type GateOptions struct {
	Gate  domain.Gate
	Stats domain.StatsStore
	// Key identifica o recurso nos stats/logs.
	Key    string
	Logger logrus.FieldLogger
	// AcquireTimeout limita a espera no gate. 0 = só o contexto da requisição.
	AcquireTimeout time.Duration
	RejectStatus   int
	// AddWaitHeader adiciona X-Admission-Wait (ms) na resposta.
	AddWaitHeader bool
}

// GateMiddleware segura cada requisição até o gate admitir.
// Diferente de Middleware (429 imediato), aqui o excesso espera na fila; só é
// rejeitado (503 por padrão) se a espera for cancelada ou passar de AcquireTimeout.
func GateMiddleware(opts GateOptions) func(next http.Handler) http.Handler {
	if opts.Gate == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.AdmissionService{
		Gate:   opts.Gate,
		Stats:  opts.Stats,
		Logger: opts.Logger,
		Key:    domain.Key(opts.Key),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if opts.AcquireTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.AcquireTimeout)
				defer cancel()
			}

			req := svc
			req.Method, req.Path = r.Method, r.URL.Path

			start := time.Now()
			err := req.Admit(ctx)
			if opts.AddWaitHeader {
				w.Header().Set("X-Admission-Wait", formatInt(int(time.Since(start).Milliseconds())))
			}
			if err != nil {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
