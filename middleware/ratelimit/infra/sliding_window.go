package infra

import (
	"container/list"
	"context"
	"sync"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"
)

// SlidingWindowGate limita a no máximo Limit admissões em qualquer intervalo
// contínuo de duração Unit (janela deslizante, não bucket fixo).
//
// Chamadores em excesso bloqueiam em Acquire e são atendidos em ordem de chegada:
// a fila de espera é explícita porque sync.Mutex não garante FIFO. Só o primeiro
// da fila reavalia o ledger; quem chega depois nunca passa na frente de quem já espera.
type SlidingWindowGate struct {
	mu      sync.Mutex
	window  domain.Window
	ledger  *list.List // time.Time, mais antigo na frente
	waiters *list.List // *gateWaiter, ordem de chegada
	now     func() time.Time
}

type gateWaiter struct {
	// wake recebe um sinal quando o waiter vira o primeiro da fila.
	wake chan struct{}
}

type GateOption func(*SlidingWindowGate)

// WithClock troca a fonte de tempo (útil em testes).
// O relógio precisa ser não-decrescente entre chamadas sucessivas.
func WithClock(now func() time.Time) GateOption {
	return func(g *SlidingWindowGate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewSlidingWindowGate cria um gate para `limit` admissões por `unit`.
// Retorna domain.ErrInvalidConfiguration se unit <= 0 ou limit <= 0.
func NewSlidingWindowGate(unit time.Duration, limit int, opts ...GateOption) (*SlidingWindowGate, error) {
	w := domain.Window{Unit: unit, Limit: limit}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	g := &SlidingWindowGate{
		window:  w,
		ledger:  list.New(),
		waiters: list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *SlidingWindowGate) Window() domain.Window { return g.window }

// Acquire implementa domain.Gate.
//
// Se houver vaga e ninguém esperando, admite sem bloquear (mesmo com ctx já encerrado).
// Caso contrário entra na fila e espera. Se o ctx encerrar durante a espera, sai da
// fila sem tocar no ledger e retorna um erro que casa com domain.ErrCancelled e ctx.Err().
func (g *SlidingWindowGate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.waiters.Len() == 0 {
		if _, ok := g.admitLocked(); ok {
			g.mu.Unlock()
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		g.mu.Unlock()
		return domain.Cancelled(err)
	}

	w := &gateWaiter{wake: make(chan struct{}, 1)}
	elem := g.waiters.PushBack(w)
	head := g.waiters.Front() == elem
	g.mu.Unlock()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var timeout <-chan time.Time
		if head {
			g.mu.Lock()
			wait, ok := g.admitLocked()
			if ok {
				g.waiters.Remove(elem)
				g.notifyHeadLocked()
				g.mu.Unlock()
				return nil
			}
			g.mu.Unlock()

			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			timeout = timer.C
		}

		select {
		case <-w.wake:
			head = true
		case <-timeout:
		case <-ctx.Done():
			g.mu.Lock()
			wasHead := g.waiters.Front() == elem
			g.waiters.Remove(elem)
			if wasHead {
				g.notifyHeadLocked()
			}
			g.mu.Unlock()
			return domain.Cancelled(ctx.Err())
		}
	}
}

// TryAcquire admite sem bloquear se houver vaga e a fila estiver vazia.
func (g *SlidingWindowGate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.waiters.Len() > 0 {
		return false
	}
	_, ok := g.admitLocked()
	return ok
}

// Allow implementa domain.Limiter.
func (g *SlidingWindowGate) Allow() bool { return g.TryAcquire() }

// Len retorna quantas admissões ainda contam dentro da janela.
func (g *SlidingWindowGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.purgeLocked(g.now())
	return g.ledger.Len()
}

// RetryAfter estima quanto falta para abrir uma vaga. Zero se há vaga agora.
// Não considera quem já está na fila.
func (g *SlidingWindowGate) RetryAfter() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.purgeLocked(now)
	if g.ledger.Len() < g.window.Limit {
		return 0
	}
	return g.ledger.Front().Value.(time.Time).Add(g.window.Unit).Sub(now)
}

// Waiting retorna quantos chamadores estão bloqueados em Acquire.
func (g *SlidingWindowGate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters.Len()
}

// Ledger retorna uma cópia dos instantes de admissão ainda na janela, do mais antigo ao mais novo.
func (g *SlidingWindowGate) Ledger() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.purgeLocked(g.now())
	out := make([]time.Time, 0, g.ledger.Len())
	for e := g.ledger.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(time.Time))
	}
	return out
}

// admitLocked registra uma admissão se houver vaga. Sem vaga, retorna quanto
// falta para a entrada mais antiga sair da janela (sempre > 0).
func (g *SlidingWindowGate) admitLocked() (time.Duration, bool) {
	for {
		now := g.now()
		g.purgeLocked(now)

		if g.ledger.Len() < g.window.Limit {
			g.ledger.PushBack(now)
			return 0, true
		}

		oldest := g.ledger.Front().Value.(time.Time)
		wait := oldest.Add(g.window.Unit).Sub(now)
		if wait > 0 {
			return wait, false
		}
		// relógio andou entre leituras: reavalia na hora
	}
}

// purgeLocked remove da frente toda entrada com idade >= Unit.
// Uma entrada com exatamente Unit de idade já está fora da janela.
func (g *SlidingWindowGate) purgeLocked(now time.Time) {
	for e := g.ledger.Front(); e != nil; e = g.ledger.Front() {
		if now.Sub(e.Value.(time.Time)) < g.window.Unit {
			return
		}
		g.ledger.Remove(e)
	}
}

// notifyHeadLocked acorda o primeiro da fila, sem bloquear.
func (g *SlidingWindowGate) notifyHeadLocked() {
	front := g.waiters.Front()
	if front == nil {
		return
	}
	select {
	case front.Value.(*gateWaiter).wake <- struct{}{}:
	default:
	}
}
