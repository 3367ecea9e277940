package position

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by repositories when a versioned update or a first
// insert lost the race against a concurrent writer.
var ErrConflict = errors.New("version conflict")

// Entry is the last-known-good snapshot for one (subject, asset, viewTarget)
// key. Version increases by exactly 1 per accepted write; LastRequestID
// identifies the write that produced the current version. Entries are never
// deleted, only superseded.
type Entry struct {
	ID            uint
	Subject       string
	Asset         string
	ViewTarget    string
	Collateral    string
	Debt          string
	Version       uint64
	LastRequestID string
	LastSequence  uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WriteAttempt is one push into the cache. ExpectedNextVersion == 0 means
// unconditional (legacy callers); Sequence == 0 means no sequence hint.
type WriteAttempt struct {
	Subject             string
	Asset               string
	ViewTarget          string
	Collateral          string
	Debt                string
	ExpectedNextVersion uint64
	RequestID           string
	Sequence            uint64
	SourceRef           string
}

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeStaleVersion Outcome = "stale_version"
	OutcomeOutOfOrder   Outcome = "out_of_order"
	OutcomeInvalid      Outcome = "invalid"
)

// ApplyResult reports the decision for one WriteAttempt. Version is the
// entry's version after the decision (unchanged unless Outcome is applied).
type ApplyResult struct {
	Outcome Outcome
	Version uint64
	Detail  string
}

// Applied reports whether the attempt mutated the entry.
func (r ApplyResult) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// Settled reports whether the attempt's logical update is reflected in the
// cache, either because this call applied it or because an earlier delivery
// of the same request already did.
func (r ApplyResult) Settled() bool {
	return r.Outcome == OutcomeApplied || r.Outcome == OutcomeDuplicate
}

type Repository interface {
	// FindByKey returns (nil, nil) when no entry exists for the key yet.
	FindByKey(ctx context.Context, subject, asset, viewTarget string) (*Entry, error)
	// Create inserts the first entry for a key; ErrConflict if a concurrent
	// writer inserted it first.
	Create(ctx context.Context, entry *Entry) error
	// UpdateVersioned persists the entry only if the stored version still
	// equals expectedVersion; ErrConflict otherwise.
	UpdateVersioned(ctx context.Context, entry *Entry, expectedVersion uint64) error
}
