package audit

import (
	"context"
	"time"

	"openlend.ai/position-cache/app/domain/query"
)

// Action is the closed set of reconciliation decisions an audit record can
// describe.
const (
	ActionApplied              = "applied"
	ActionRejectedStaleVersion = "rejected-stale-version"
	ActionRejectedDuplicate    = "rejected-duplicate"
	ActionRejectedOutOfOrder   = "rejected-out-of-order"
	ActionRejectedInvalid      = "rejected-invalid"
	ActionEnqueued             = "enqueued"
	ActionLeased               = "leased"
	ActionRetried              = "retried"
	ActionSucceeded            = "succeeded"
	ActionIgnored              = "ignored"
	ActionDeadlettered         = "deadlettered"
)

// Record is one immutable line of the reconciliation trail. Records are
// appended and read, never mutated or deleted.
type Record struct {
	ID            uint
	JobPublicID   *string
	Subject       string
	Asset         string
	ViewTarget    string
	Action        string
	Actor         string
	BeforeVersion uint64
	AfterVersion  uint64
	Detail        string
	CreatedAt     time.Time
}

type Filter struct {
	Subject     *string
	Asset       *string
	ViewTarget  *string
	Action      *string
	JobPublicID *string
	From        *time.Time
	To          *time.Time
}

type Repository interface {
	Append(ctx context.Context, record *Record) error
	FindByFilter(ctx context.Context, filter Filter, pagination *query.Pagination) ([]*Record, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	CountByAction(ctx context.Context, from time.Time) (map[string]int64, error)
}
