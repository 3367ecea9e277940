package audit

import (
	"context"
	"time"

	"openlend.ai/position-cache/app/domain/query"
	"openlend.ai/position-cache/app/domain/retryjob"
	"openlend.ai/position-cache/app/utils/logger"
)

// QueueStats is the slice of the retry queue the metrics derivation needs.
type QueueStats interface {
	CountByStatus(ctx context.Context) (map[retryjob.Status]int64, error)
	OldestPendingCreatedAt(ctx context.Context) (*time.Time, error)
	AverageRepairSeconds(ctx context.Context) (float64, error)
}

// Service is the reconciliation auditor: an append-only trail of every
// apply/reject/retry decision plus health metrics derived from it. Appends
// never propagate errors to the caller; losing one audit line must not fail a
// write or a retry.
type Service struct {
	repo  Repository
	queue QueueStats
}

func NewService(repo Repository, queue QueueStats) *Service {
	return &Service{
		repo:  repo,
		queue: queue,
	}
}

// RecordWrite appends one write-path decision. JobPublicID stays null; write
// path records exist independently of any retry job.
func (s *Service) RecordWrite(ctx context.Context, subject, asset, viewTarget string, action string, actor string, beforeVersion, afterVersion uint64, detail string) {
	s.append(ctx, &Record{
		Subject:       subject,
		Asset:         asset,
		ViewTarget:    viewTarget,
		Action:        action,
		Actor:         actor,
		BeforeVersion: beforeVersion,
		AfterVersion:  afterVersion,
		Detail:        detail,
		CreatedAt:     time.Now(),
	})
}

// RecordJob appends one retry-subsystem decision.
func (s *Service) RecordJob(ctx context.Context, jobPublicID, subject, asset, viewTarget string, action string, actor string, detail string) {
	s.append(ctx, &Record{
		JobPublicID: &jobPublicID,
		Subject:     subject,
		Asset:       asset,
		ViewTarget:  viewTarget,
		Action:      action,
		Actor:       actor,
		Detail:      detail,
		CreatedAt:   time.Now(),
	})
}

func (s *Service) append(ctx context.Context, record *Record) {
	if err := s.repo.Append(ctx, record); err != nil {
		logger.GetLogger().
			WithField("action", record.Action).
			WithField("subject", record.Subject).
			WithField("asset", record.Asset).
			Errorf("audit append failed: %v", err)
	}
}

func (s *Service) Query(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*Record, error) {
	return s.repo.FindByFilter(ctx, filter, pagination)
}

func (s *Service) Count(ctx context.Context, filter Filter) (int64, error) {
	return s.repo.Count(ctx, filter)
}

// Metrics is the health view derived from the trail and the queue: rejection
// and failure rates, queue depth and age, dead-letter pressure, and mean
// time-to-repair over succeeded jobs.
type Metrics struct {
	Window           time.Duration    `json:"-"`
	ActionCounts     map[string]int64 `json:"action_counts"`
	QueueDepth       map[string]int64 `json:"queue_depth"`
	OldestPendingAge *float64         `json:"oldest_pending_age_seconds,omitempty"`
	DeadletterRate   float64          `json:"deadletter_rate"`
	MeanTimeToRepair float64          `json:"mean_time_to_repair_seconds"`
}

func (s *Service) Metrics(ctx context.Context, window time.Duration) (*Metrics, error) {
	actions, err := s.repo.CountByAction(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	byStatus, err := s.queue.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{
		Window:       window,
		ActionCounts: actions,
		QueueDepth:   make(map[string]int64, len(byStatus)),
	}
	var total, dead int64
	for status, n := range byStatus {
		metrics.QueueDepth[string(status)] = n
		total += n
		if status == retryjob.StatusDeadletter {
			dead = n
		}
	}
	if total > 0 {
		metrics.DeadletterRate = float64(dead) / float64(total)
	}

	if oldest, err := s.queue.OldestPendingCreatedAt(ctx); err == nil && oldest != nil {
		age := time.Since(*oldest).Seconds()
		metrics.OldestPendingAge = &age
	}
	if mttr, err := s.queue.AverageRepairSeconds(ctx); err == nil {
		metrics.MeanTimeToRepair = mttr
	}
	return metrics, nil
}
