package application

import (
	"context"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
//
// Só rejeições viram StatsEvent: a passagem normal já é contada pelo limiter de entrada.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	Stats          domain.StatsStore
	// Key identifica o pool nos stats (ex: "concurrency").
	Key    domain.Key
	Method string
	Path   string
}

// Acquire tenta adquirir uma vaga.
//   - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
//   - Se `AcquireTimeout > 0`, espera até o timeout.
//
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida e a rejeição é
// registrada: cancelled se o ctx do chamador acabou, denied se estourou o timeout.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	start := time.Now()
	release, ok := s.acquire(ctx)
	if !ok {
		s.recordRejection(ctx, time.Since(start))
	}
	return release, ok
}

func (s ConcurrencyService) acquire(ctx context.Context) (func(), bool) {
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}

func (s ConcurrencyService) recordRejection(ctx context.Context, wait time.Duration) {
	if s.Stats == nil {
		return
	}

	outcome := domain.OutcomeDenied
	if ctx.Err() != nil {
		outcome = domain.OutcomeCancelled
	}
	_ = s.Stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{
		Key:     s.Key,
		Outcome: outcome,
		Wait:    wait,
		Method:  s.Method,
		Path:    s.Path,
		At:      time.Now(),
	})
}
