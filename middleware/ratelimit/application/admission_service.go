package application

import (
	"context"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

// AdmissionService passa o chamador pelo gate de saída e registra o resultado.
//
// Sem Gate, admite imediatamente. Stats e Logger são opcionais; falha ao gravar
// stats é apenas logada.
type AdmissionService struct {
	Gate   domain.Gate
	Stats  domain.StatsStore
	Logger logrus.FieldLogger
	// Key identifica o recurso limitado nos stats e logs (ex: "documents").
	Key domain.Key
	// Method/Path são opcionais; preenchidos, alimentam os contadores por rota.
	Method string
	Path   string
}

// Admit bloqueia até o gate admitir ou o ctx encerrar. O erro do gate é devolvido sem alteração.
func (s AdmissionService) Admit(ctx context.Context) error {
	if s.Gate == nil {
		return nil
	}

	start := time.Now()
	err := s.Gate.Acquire(ctx)
	wait := time.Since(start)

	outcome := domain.OutcomeAdmitted
	if err != nil {
		outcome = domain.OutcomeCancelled
		if !domain.IsCancelled(err) {
			outcome = domain.OutcomeDenied
		}
	}

	if s.Logger != nil {
		entry := s.Logger.WithFields(logrus.Fields{
			"module":  "admission",
			"key":     string(s.Key),
			"outcome": string(outcome),
			"wait":    wait.String(),
		})
		if s.Path != "" {
			entry = entry.WithFields(logrus.Fields{"method": s.Method, "path": s.Path})
		}
		if err != nil {
			entry.WithError(err).Warnf("admission: gave up waiting [key: %s]", s.Key)
		} else {
			entry.Debugf("admission: granted [key: %s]", s.Key)
		}
	}

	if s.Stats != nil {
		// ctx pode já estar encerrado (é justamente o caso cancelled); grava mesmo assim.
		rerr := s.Stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{
			Key:     s.Key,
			Outcome: outcome,
			Wait:    wait,
			Method:  s.Method,
			Path:    s.Path,
			At:      time.Now(),
		})
		if rerr != nil && s.Logger != nil {
			s.Logger.WithError(rerr).Warn("admission: stats record failed")
		}
	}

	return err
}

// Acquire implementa domain.Gate, para que o serviço possa decorar o gate
// (stats + logs) onde um domain.Gate é esperado, como no cliente crpt.
func (s AdmissionService) Acquire(ctx context.Context) error { return s.Admit(ctx) }
