package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfiguration indica janela ou limite não positivos.
	// É detectado na construção e não deve ser re-tentado.
	ErrInvalidConfiguration = errors.New("invalid gate configuration")

	// ErrCancelled indica que a espera por admissão foi abandonada porque o
	// contexto do chamador encerrou. Nenhuma admissão foi registrada.
	ErrCancelled = errors.New("admission cancelled")
)

// Window é o par (unidade, limite): no máximo Limit admissões em qualquer
// intervalo contínuo de duração Unit.
type Window struct {
	Unit  time.Duration
	Limit int
}

func (w Window) Validate() error {
	if w.Unit <= 0 {
		return fmt.Errorf("%w: unit must be > 0, got %s", ErrInvalidConfiguration, w.Unit)
	}
	if w.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidConfiguration, w.Limit)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("%d/%s", w.Limit, w.Unit)
}

// Gate é o portão de admissão: todo chamador precisa de um Acquire bem-sucedido
// antes de executar a ação limitada.
//
// Acquire bloqueia até a admissão ser concedida (retorna nil, já registrada)
// ou até o ctx encerrar (retorna erro que casa com ErrCancelled e ctx.Err()).
type Gate interface {
	Acquire(ctx context.Context) error
}

// cancelledError carrega as duas causas para errors.Is.
type cancelledError struct {
	cause error
}

func (e *cancelledError) Error() string {
	return ErrCancelled.Error() + ": " + e.cause.Error()
}

func (e *cancelledError) Unwrap() []error { return []error{ErrCancelled, e.cause} }

// Cancelled embrulha a causa (normalmente ctx.Err()) como ErrCancelled.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return &cancelledError{cause: cause}
}

func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }
