package application

import (
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// retryHinter é implementado por limiters que sabem quando abre a próxima vaga
// (ex: a janela deslizante do gate).
type retryHinter interface {
	RetryAfter() time.Duration
}

// Service concentra a regra de aplicação do rate limit de entrada.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}
	if lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if h, ok := lim.(retryHinter); ok {
		// Retry-After é em segundos inteiros: arredonda para cima
		if d := h.RetryAfter(); d > 0 {
			retry = ((d + time.Second - 1) / time.Second) * time.Second
		}
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}
