package infra

import (
	"sync"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store mantém um limiter por chave (cliente de entrada) com limpeza periódica.
//
// Por padrão cada chave recebe um token bucket (x/time/rate). Com NewWindowStore,
// cada chave recebe um SlidingWindowGate, usado de forma não bloqueante (Allow).
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	newLimiter   func() domain.Limiter
	rps          float64
	burst        int
	window       domain.Window // zero para token bucket
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      domain.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// NewStore cria um store de token buckets: `rps` tokens por segundo, rajada `burst`.
func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := newStore(rps, burst, opts...)
	s.newLimiter = func() domain.Limiter { return rate.NewLimiter(rate.Limit(rps), burst) }
	return s
}

// NewWindowStore cria um store de janelas deslizantes: `w.Limit` requisições por `w.Unit`, por chave.
// O idleTTL nunca fica menor que a janela, para não esquecer admissões ainda válidas.
func NewWindowStore(w domain.Window, opts ...StoreOption) (*Store, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	s := newStore(float64(w.Limit)/w.Unit.Seconds(), w.Limit, opts...)
	s.window = w
	if s.idleTTL < w.Unit {
		s.idleTTL = w.Unit
	}
	s.newLimiter = func() domain.Limiter {
		g, _ := NewSlidingWindowGate(w.Unit, w.Limit)
		return g
	}
	return s, nil
}

func newStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*storeEntry),
		rps:          rps,
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RPS é a taxa de reposição do token bucket. Numa janela deslizante não existe
// reposição contínua: o valor é só a média Limit/Unit, use Window para anunciar o limite.
func (s *Store) RPS() float64                { return s.rps }
func (s *Store) Burst() int                  { return s.burst }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Window retorna a janela configurada; ok=false para token bucket.
func (s *Store) Window() (domain.Window, bool) { return s.window, s.window.Limit > 0 }

// Kind identifica a estratégia nos logs: "window" ou "token".
func (s *Store) Kind() string {
	if s.window.Limit > 0 {
		return "window"
	}
	return "token"
}

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	now := time.Now()
	k := string(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[k]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := s.newLimiter()
	s.entries[k] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
