package retryjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openlend.ai/position-cache/app/domain/query"
	"openlend.ai/position-cache/app/utils/idgen"
	"openlend.ai/position-cache/app/utils/logger"
)

// AuditSink receives one record per job transition. Implementations must not
// fail the queue; errors stay inside the sink.
type AuditSink interface {
	RecordJob(ctx context.Context, jobPublicID, subject, asset, viewTarget string, action string, actor string, detail string)
}

type ServiceConfig struct {
	// MaxAttempts is the dead-letter threshold: failures up to and including
	// it reschedule with backoff, the failure that pushes the attempt count
	// past it dead-letters the job.
	MaxAttempts int
	Backoff     Backoff
}

// Service owns the retry-job state machine. Automatic transitions come from
// worker outcomes; operator verbs (ignore, replay, force-retry) are explicit
// and validated separately.
type Service struct {
	repo    Repository
	auditor AuditSink
	config  ServiceConfig
}

func NewService(repo Repository, auditor AuditSink, config ServiceConfig) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		config:  config,
	}
}

// EnqueueParams carries everything a failure signal knows about the push that
// never landed, including the values it tried to write.
type EnqueueParams struct {
	Subject             string
	Asset               string
	ViewTarget          string
	ReasonCode          ReasonCode
	ReasonDetail        string
	SourceRef           string
	AttemptedCollateral string
	AttemptedDebt       string
}

// Enqueue records corrective work for a failure signal. Enqueue is
// idempotent on (viewTarget, sourceRef): a duplicate signal increments the
// existing job's duplicate counter instead of creating a second job. The
// returned bool is true when a new job was created.
func (s *Service) Enqueue(ctx context.Context, params EnqueueParams) (*Job, bool, error) {
	publicID := idgen.DeriveJobID(params.ViewTarget, params.SourceRef)

	existing, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("lookup retry job: %w", err)
	}
	if existing != nil {
		job, err := s.foldDuplicateSignal(ctx, publicID)
		return job, false, err
	}

	now := time.Now()
	job := &Job{
		PublicID:            publicID,
		Subject:             params.Subject,
		Asset:               params.Asset,
		ViewTarget:          params.ViewTarget,
		ReasonCode:          params.ReasonCode,
		ReasonDetail:        params.ReasonDetail,
		SourceRef:           params.SourceRef,
		AttemptedCollateral: params.AttemptedCollateral,
		AttemptedDebt:       params.AttemptedDebt,
		Status:              StatusPending,
		NextAvailableAt:     now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		// a concurrent signal for the same root cause won the insert
		if errors.Is(err, ErrConflict) {
			folded, foldErr := s.foldDuplicateSignal(ctx, publicID)
			return folded, false, foldErr
		}
		return nil, false, fmt.Errorf("create retry job: %w", err)
	}
	s.audit(ctx, job, "enqueued", "failure-signal", string(params.ReasonCode))
	return job, true, nil
}

// foldDuplicateSignal increments the duplicate counter of an existing job,
// retrying the read-modify-write when a worker transition lands in between.
func (s *Service) foldDuplicateSignal(ctx context.Context, publicID string) (*Job, error) {
	for attempt := 0; attempt < 3; attempt++ {
		job, err := s.repo.FindByPublicID(ctx, publicID)
		if err != nil {
			return nil, fmt.Errorf("lookup retry job: %w", err)
		}
		job.DuplicateSignals++
		job.UpdatedAt = time.Now()
		if err := s.repo.Update(ctx, job); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return nil, fmt.Errorf("update retry job: %w", err)
		}
		return job, nil
	}
	return nil, fmt.Errorf("fold duplicate signal for %s: %w", publicID, ErrConflict)
}

// DueJobs returns pending jobs whose cooldown elapsed, oldest first.
func (s *Service) DueJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.FindDue(ctx, StatusPending, time.Now(), limit)
}

// MarkLeased moves a pending job under a granted lease.
func (s *Service) MarkLeased(ctx context.Context, job *Job, actor string) error {
	if err := s.transition(ctx, job, StatusLeased); err != nil {
		return err
	}
	s.audit(ctx, job, "leased", actor, "")
	return nil
}

// MarkRetrying records the start of one retry attempt.
func (s *Service) MarkRetrying(ctx context.Context, job *Job, actor string) error {
	now := time.Now()
	job.LastAttemptAt = &now
	if err := s.transition(ctx, job, StatusRetrying); err != nil {
		return err
	}
	s.audit(ctx, job, "retried", actor, fmt.Sprintf("attempt %d", job.Attempts+1))
	return nil
}

// ReleaseUnattempted puts a leased job back to pending without consuming an
// attempt, e.g. when the worker drops the lease before reaching the store.
func (s *Service) ReleaseUnattempted(ctx context.Context, job *Job, actor string) error {
	return s.transition(ctx, job, StatusPending)
}

// CompleteSuccess retires the job. Reaching the cache counts whether this
// attempt applied the write or found it already applied by an earlier retry.
func (s *Service) CompleteSuccess(ctx context.Context, job *Job, actor, detail string) error {
	job.Attempts++
	if err := s.transition(ctx, job, StatusSucceeded); err != nil {
		return err
	}
	s.audit(ctx, job, "succeeded", actor, detail)
	return nil
}

// FailAttempt consumes one attempt and either reschedules the job with
// backoff or, past the threshold, dead-letters it. Returns the resulting
// status.
func (s *Service) FailAttempt(ctx context.Context, job *Job, actor, detail string) (Status, error) {
	job.Attempts++
	if job.Attempts > s.config.MaxAttempts {
		if err := s.transition(ctx, job, StatusDeadletter); err != nil {
			return job.Status, err
		}
		s.audit(ctx, job, "deadlettered", actor, detail)
		logger.GetLogger().
			WithField("job_id", job.PublicID).
			WithField("attempts", job.Attempts).
			Errorf("retry job dead-lettered after %d attempts: %s", job.Attempts, detail)
		return StatusDeadletter, nil
	}

	job.NextAvailableAt = time.Now().Add(s.config.Backoff.Next(job.Attempts))
	if err := s.transition(ctx, job, StatusPending); err != nil {
		return job.Status, err
	}
	s.audit(ctx, job, "retried", actor, fmt.Sprintf("rescheduled: %s", detail))
	return StatusPending, nil
}

// Deadletter dead-letters the job immediately, bypassing the attempt
// threshold. Used for malformed attempts where retrying has no value.
func (s *Service) Deadletter(ctx context.Context, job *Job, actor, detail string) error {
	job.Attempts++
	if err := s.transition(ctx, job, StatusDeadletter); err != nil {
		return err
	}
	s.audit(ctx, job, "deadlettered", actor, detail)
	logger.GetLogger().
		WithField("job_id", job.PublicID).
		Errorf("retry job dead-lettered: %s", detail)
	return nil
}

// MarkIgnored is the operator decision that a discrepancy is immaterial.
// Allowed from pending and deadletter; a job in flight must settle first.
func (s *Service) MarkIgnored(ctx context.Context, publicID, note, actor string) (*Job, error) {
	job, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusPending && job.Status != StatusDeadletter {
		return nil, fmt.Errorf("%w: cannot ignore job in status %q", ErrInvalidTransition, job.Status)
	}
	job.Status = StatusIgnored
	job.Note = note
	job.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, job); err != nil {
		return nil, err
	}
	s.audit(ctx, job, "ignored", actor, note)
	return job, nil
}

// ReplayDeadletter re-enqueues a dead-lettered job with a fresh attempt
// budget. This is the only way out of deadletter.
func (s *Service) ReplayDeadletter(ctx context.Context, publicID, actor string) (*Job, error) {
	job, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusDeadletter {
		return nil, fmt.Errorf("%w: cannot replay job in status %q", ErrInvalidTransition, job.Status)
	}
	job.Status = StatusPending
	job.Attempts = 0
	job.NextAvailableAt = time.Now()
	job.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, job); err != nil {
		return nil, err
	}
	s.audit(ctx, job, "enqueued", actor, "deadletter replay")
	return job, nil
}

// ForceRetry clears the cooldown of a pending job so the next worker cycle
// picks it up. With dryRun it only reports what would happen.
func (s *Service) ForceRetry(ctx context.Context, publicID string, dryRun bool, actor string) (*Job, error) {
	job, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot force-retry job in status %q", ErrInvalidTransition, job.Status)
	}
	if dryRun {
		return job, nil
	}
	job.NextAvailableAt = time.Now()
	job.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, job); err != nil {
		return nil, err
	}
	s.audit(ctx, job, "retried", actor, "force-retry")
	return job, nil
}

func (s *Service) FindByPublicID(ctx context.Context, publicID string) (*Job, error) {
	return s.repo.FindByPublicID(ctx, publicID)
}

func (s *Service) FindByFilter(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*Job, error) {
	return s.repo.FindByFilter(ctx, filter, pagination)
}

func (s *Service) Count(ctx context.Context, filter Filter) (int64, error) {
	return s.repo.Count(ctx, filter)
}

func (s *Service) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) OldestPendingCreatedAt(ctx context.Context) (*time.Time, error) {
	return s.repo.OldestPendingCreatedAt(ctx)
}

func (s *Service) AverageRepairSeconds(ctx context.Context) (float64, error) {
	return s.repo.AverageRepairSeconds(ctx)
}

// RecoverStuck requeues in-flight jobs whose worker went away: a job sitting
// in leased or retrying past the lease TTL has no live holder, so returning
// it to pending cannot race a running attempt. The attempt budget is kept;
// the crash consumed no write. Returns the number of jobs recovered.
func (s *Service) RecoverStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	jobs, err := s.repo.FindStaleInFlight(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("find stale in-flight jobs: %w", err)
	}
	recovered := 0
	for _, job := range jobs {
		if err := s.transition(ctx, job, StatusPending); err != nil {
			// a revived worker beat the sweep to it; leave the job alone
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return recovered, err
		}
		s.audit(ctx, job, "enqueued", "queue-sweep", "requeued after stale lease")
		recovered++
	}
	return recovered, nil
}

// HasPendingCorrection reports whether any non-terminal job exists for a key.
func (s *Service) HasPendingCorrection(ctx context.Context, subject, asset, viewTarget string) (bool, error) {
	n, err := s.repo.CountOpenForKey(ctx, subject, asset, viewTarget)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) transition(ctx context.Context, job *Job, to Status) error {
	if !CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, job.Status, to)
	}
	from := job.Status
	job.Status = to
	job.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, job); err != nil {
		job.Status = from
		return err
	}
	return nil
}

func (s *Service) audit(ctx context.Context, job *Job, action, actor, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.RecordJob(ctx, job.PublicID, job.Subject, job.Asset, job.ViewTarget, action, actor, detail)
}
