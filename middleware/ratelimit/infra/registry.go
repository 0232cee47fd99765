package infra

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"crpt-gateway/middleware/ratelimit/domain"
)

// GateRegistry mantém um gate por recurso limitado (ex: "documents", "receipts").
// Recursos diferentes têm janelas independentes; quem usa recebe a referência do gate
// explicitamente em vez de depender de estado global.
type GateRegistry struct {
	mu    sync.RWMutex
	gates map[string]*SlidingWindowGate
	opts  []GateOption
}

// NewGateRegistry cria um registro vazio. As opções são repassadas a cada gate criado.
func NewGateRegistry(opts ...GateOption) *GateRegistry {
	return &GateRegistry{
		gates: make(map[string]*SlidingWindowGate),
		opts:  opts,
	}
}

// Register cria o gate do recurso `name`. Falha se o nome já existir ou se a janela for inválida.
func (r *GateRegistry) Register(name string, w domain.Window) (*SlidingWindowGate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty gate name", domain.ErrInvalidConfiguration)
	}

	g, err := NewSlidingWindowGate(w.Unit, w.Limit, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("gate %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gates[name]; ok {
		return nil, fmt.Errorf("gate %q already registered", name)
	}
	r.gates[name] = g
	return g, nil
}

// RegisterAll registra cada spec em ordem e para no primeiro erro.
func (r *GateRegistry) RegisterAll(specs []GateSpec) error {
	for _, s := range specs {
		if _, err := r.Register(s.Name, s.Window()); err != nil {
			return err
		}
	}
	return nil
}

func (r *GateRegistry) Get(name string) (*SlidingWindowGate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gates[name]
	return g, ok
}

// Names retorna os recursos registrados, ordenados.
func (r *GateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.gates))
	for name := range r.gates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
