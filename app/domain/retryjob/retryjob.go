package retryjob

import (
	"context"
	"errors"
	"time"

	"openlend.ai/position-cache/app/domain/query"
)

var (
	ErrNotFound          = errors.New("retry job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrConflict          = errors.New("retry job concurrently modified")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusLeased     Status = "leased"
	StatusRetrying   Status = "retrying"
	StatusSucceeded  Status = "succeeded"
	StatusIgnored    Status = "ignored"
	StatusDeadletter Status = "deadletter"
)

// Terminal reports whether no automatic transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusIgnored || s == StatusDeadletter
}

// ReasonCode is the closed set of root causes a failure signal can carry.
// Free-form diagnostics go to ReasonDetail; consumers branch on the code.
type ReasonCode string

const (
	ReasonWriteUnavailable ReasonCode = "write-unavailable"
	ReasonTargetUnresolved ReasonCode = "target-unresolved"
	ReasonUnauthorized     ReasonCode = "unauthorized"
	ReasonMalformed        ReasonCode = "malformed"
	ReasonUnknown          ReasonCode = "unknown"
)

// Job is one unit of corrective work, uniquely identified by a PublicID
// derived from (viewTarget, sourceRef) so repeated signals for the same root
// cause collapse onto one job. The attempted values are the payload the
// original push carried; recovery re-reads the ledger instead of trusting
// them, they exist for operator diagnosis and manual replay.
type Job struct {
	ID                  uint
	PublicID            string
	Subject             string
	Asset               string
	ViewTarget          string
	ReasonCode          ReasonCode
	ReasonDetail        string
	SourceRef           string
	AttemptedCollateral string
	AttemptedDebt       string
	Status              Status
	Attempts            int
	DuplicateSignals    int
	LastAttemptAt       *time.Time
	NextAvailableAt     time.Time
	Note                string
	// Revision guards read-modify-write updates: every successful Update
	// increments it, a mismatch surfaces as ErrConflict.
	Revision  uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the job's cooldown has elapsed.
func (j *Job) Due(now time.Time) bool {
	return !j.NextAvailableAt.After(now)
}

type Filter struct {
	Status     *Status
	Subject    *string
	Asset      *string
	ViewTarget *string
}

type Repository interface {
	// Create inserts the job; a PublicID collision returns ErrConflict.
	Create(ctx context.Context, job *Job) error
	// Update persists the job iff its Revision still matches the stored row,
	// then increments job.Revision. A lost race returns ErrConflict.
	Update(ctx context.Context, job *Job) error
	FindByPublicID(ctx context.Context, publicID string) (*Job, error)
	FindByFilter(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*Job, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// FindDue returns jobs in the given status whose cooldown elapsed,
	// oldest first.
	FindDue(ctx context.Context, status Status, now time.Time, limit int) ([]*Job, error)
	// CountOpenForKey counts non-terminal jobs for one cache key.
	CountOpenForKey(ctx context.Context, subject, asset, viewTarget string) (int64, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
	// OldestPendingCreatedAt returns nil when no pending job exists.
	OldestPendingCreatedAt(ctx context.Context) (*time.Time, error)
	// AverageRepairSeconds averages (updated_at - created_at) over succeeded
	// jobs; 0 when none.
	AverageRepairSeconds(ctx context.Context) (float64, error)
	// FindStaleInFlight returns leased/retrying jobs last touched at or
	// before olderThan, oldest first.
	FindStaleInFlight(ctx context.Context, olderThan time.Time, limit int) ([]*Job, error)
}

// validTransitions is the job state machine. Terminal states have no
// automatic successors; deadletter leaves only via operator replay, which is
// modeled explicitly in the service.
var validTransitions = map[Status][]Status{
	StatusPending:  {StatusLeased, StatusIgnored, StatusDeadletter},
	StatusLeased:   {StatusRetrying, StatusPending},
	StatusRetrying: {StatusSucceeded, StatusPending, StatusDeadletter},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
