package failure

import (
	"context"
	"fmt"

	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/domain/target"
	"openlend.ai/position-cache/app/utils/logger"
)

// Enqueuer is the slice of the retry queue the signal intake needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, params retryjob.EnqueueParams) (*retryjob.Job, bool, error)
}

// Service turns failure signals into corrective retry jobs. Intake must never
// fail the operation that raised the signal; the ledger's own consistency is
// never held hostage to cache availability.
type Service struct {
	queue Enqueuer
}

func NewService(queue Enqueuer) *Service {
	return &Service{queue: queue}
}

// Record normalizes and enqueues one signal. A missing view target becomes
// the sentinel rather than a dropped signal; a missing reason code is kept as
// unknown so the job still carries a closed-set code downstream.
func (s *Service) Record(ctx context.Context, sig Signal) (*retryjob.Job, error) {
	if sig.Subject == "" || sig.Asset == "" || sig.SourceRef == "" {
		return nil, fmt.Errorf("failure signal missing subject, asset or source ref")
	}
	if sig.ViewTarget == "" {
		sig.ViewTarget = target.UnknownTarget
	}
	if sig.ReasonCode == "" {
		sig.ReasonCode = retryjob.ReasonUnknown
	}

	job, created, err := s.queue.Enqueue(ctx, retryjob.EnqueueParams{
		Subject:             sig.Subject,
		Asset:               sig.Asset,
		ViewTarget:          sig.ViewTarget,
		ReasonCode:          sig.ReasonCode,
		ReasonDetail:        sig.ReasonDetail,
		SourceRef:           sig.SourceRef,
		AttemptedCollateral: sig.AttemptedCollateral,
		AttemptedDebt:       sig.AttemptedDebt,
	})
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger().
		WithField("job_id", job.PublicID).
		WithField("subject", sig.Subject).
		WithField("asset", sig.Asset).
		WithField("view_target", sig.ViewTarget).
		WithField("reason_code", string(sig.ReasonCode))
	if created {
		log.Warn("failure signal enqueued for retry")
	} else {
		log.Info("duplicate failure signal folded into existing job")
	}
	return job, nil
}
