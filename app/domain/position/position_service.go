package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openlend.ai/position-cache/app/utils/logger"
)

// AuditSink receives one record per apply decision. Implementations must not
// fail the write path; errors stay inside the sink.
type AuditSink interface {
	RecordWrite(ctx context.Context, subject, asset, viewTarget string, action string, actor string, beforeVersion, afterVersion uint64, detail string)
}

// SnapshotCache receives the accepted entry so hot reads can skip the
// database. Refresh failures must never fail the write.
type SnapshotCache interface {
	StoreEntry(ctx context.Context, entry *Entry)
	GetEntry(ctx context.Context, subject, asset, viewTarget string) *Entry
}

// PendingChecker reports whether a corrective retry job is outstanding for a
// key, which surfaces as the staleness indicator on reads.
type PendingChecker interface {
	HasPendingCorrection(ctx context.Context, subject, asset, viewTarget string) (bool, error)
}

type ServiceConfig struct {
	// StrictSequenceCheck enables the optional out-of-order rejection on the
	// Sequence hint, on top of the mandatory ExpectedNextVersion check.
	StrictSequenceCheck bool
}

// Service is the versioned cache store: it accepts or rejects write attempts
// per key with strict version monotonicity and request-ID idempotency.
type Service struct {
	repo     Repository
	auditor  AuditSink
	snapshot SnapshotCache
	pending  PendingChecker
	config   ServiceConfig
}

func NewService(repo Repository, auditor AuditSink, snapshot SnapshotCache, pending PendingChecker, config ServiceConfig) *Service {
	return &Service{
		repo:     repo,
		auditor:  auditor,
		snapshot: snapshot,
		pending:  pending,
		config:   config,
	}
}

const actorWritePath = "write-path"

// Apply runs the write-acceptance decision for one attempt:
//  1. same RequestID as the current entry -> duplicate, no state change
//  2. ExpectedNextVersion set and != version+1 -> stale, no state change
//  3. strict sequence check enabled and Sequence present but not increasing
//     -> out of order, no state change
//  4. otherwise accept: values replaced, version += 1
//
// Replays and races never corrupt the entry: the persistence layer applies
// the mutation as a compare-and-set on the version, so a concurrent loser is
// reported as stale rather than overwriting the winner.
func (s *Service) Apply(ctx context.Context, attempt WriteAttempt) (ApplyResult, error) {
	if detail, ok := s.validate(attempt); !ok {
		result := ApplyResult{Outcome: OutcomeInvalid, Detail: detail}
		s.audit(ctx, attempt, result, 0)
		return result, nil
	}

	entry, err := s.repo.FindByKey(ctx, attempt.Subject, attempt.Asset, attempt.ViewTarget)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("read cache entry: %w", err)
	}

	if entry == nil {
		return s.applyFirst(ctx, attempt)
	}

	if attempt.RequestID == entry.LastRequestID {
		result := ApplyResult{Outcome: OutcomeDuplicate, Version: entry.Version}
		s.audit(ctx, attempt, result, entry.Version)
		return result, nil
	}

	if attempt.ExpectedNextVersion != 0 && attempt.ExpectedNextVersion != entry.Version+1 {
		result := ApplyResult{
			Outcome: OutcomeStaleVersion,
			Version: entry.Version,
			Detail:  fmt.Sprintf("expected next version %d, current is %d", attempt.ExpectedNextVersion, entry.Version),
		}
		s.audit(ctx, attempt, result, entry.Version)
		return result, nil
	}

	if s.config.StrictSequenceCheck && attempt.Sequence != 0 && attempt.Sequence <= entry.LastSequence {
		result := ApplyResult{
			Outcome: OutcomeOutOfOrder,
			Version: entry.Version,
			Detail:  fmt.Sprintf("sequence %d not greater than last accepted %d", attempt.Sequence, entry.LastSequence),
		}
		s.audit(ctx, attempt, result, entry.Version)
		return result, nil
	}

	before := entry.Version
	entry.Collateral = attempt.Collateral
	entry.Debt = attempt.Debt
	entry.Version = before + 1
	entry.LastRequestID = attempt.RequestID
	if attempt.Sequence != 0 {
		entry.LastSequence = attempt.Sequence
	}
	entry.UpdatedAt = time.Now()

	if err := s.repo.UpdateVersioned(ctx, entry, before); err != nil {
		if errors.Is(err, ErrConflict) {
			// a concurrent writer advanced the version between our read and
			// write; the attempt is stale relative to the new state
			result := ApplyResult{
				Outcome: OutcomeStaleVersion,
				Version: before,
				Detail:  "lost write race, entry advanced concurrently",
			}
			s.audit(ctx, attempt, result, before)
			return result, nil
		}
		return ApplyResult{}, fmt.Errorf("persist cache entry: %w", err)
	}

	result := ApplyResult{Outcome: OutcomeApplied, Version: entry.Version}
	s.audit(ctx, attempt, result, before)
	s.refreshSnapshot(ctx, entry)
	return result, nil
}

func (s *Service) applyFirst(ctx context.Context, attempt WriteAttempt) (ApplyResult, error) {
	if attempt.ExpectedNextVersion > 1 {
		result := ApplyResult{
			Outcome: OutcomeStaleVersion,
			Version: 0,
			Detail:  fmt.Sprintf("expected next version %d on unseen key", attempt.ExpectedNextVersion),
		}
		s.audit(ctx, attempt, result, 0)
		return result, nil
	}

	now := time.Now()
	entry := &Entry{
		Subject:       attempt.Subject,
		Asset:         attempt.Asset,
		ViewTarget:    attempt.ViewTarget,
		Collateral:    attempt.Collateral,
		Debt:          attempt.Debt,
		Version:       1,
		LastRequestID: attempt.RequestID,
		LastSequence:  attempt.Sequence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, ErrConflict) {
			result := ApplyResult{
				Outcome: OutcomeStaleVersion,
				Version: 0,
				Detail:  "lost first-write race, entry created concurrently",
			}
			s.audit(ctx, attempt, result, 0)
			return result, nil
		}
		return ApplyResult{}, fmt.Errorf("create cache entry: %w", err)
	}

	result := ApplyResult{Outcome: OutcomeApplied, Version: 1}
	s.audit(ctx, attempt, result, 0)
	s.refreshSnapshot(ctx, entry)
	return result, nil
}

// CacheView is the read-path answer: the latest locally-known entry plus the
// staleness indicator for consumers that must know whether a correction is
// still in flight.
type CacheView struct {
	Entry                *Entry
	LastConfirmedVersion uint64
	PendingCorrection    bool
}

// ReadCache returns the latest locally-known entry for a key. The value may
// briefly lag the ledger; PendingCorrection is true while a retry job for the
// key is still open.
func (s *Service) ReadCache(ctx context.Context, subject, asset, viewTarget string) (*CacheView, error) {
	var entry *Entry
	if s.snapshot != nil {
		entry = s.snapshot.GetEntry(ctx, subject, asset, viewTarget)
	}
	if entry == nil {
		found, err := s.repo.FindByKey(ctx, subject, asset, viewTarget)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, nil
		}
		entry = found
		s.refreshSnapshot(ctx, entry)
	}

	view := &CacheView{
		Entry:                entry,
		LastConfirmedVersion: entry.Version,
	}
	if s.pending != nil {
		pending, err := s.pending.HasPendingCorrection(ctx, subject, asset, viewTarget)
		if err != nil {
			logger.GetLogger().Warnf("position: pending-correction lookup failed for (%s, %s, %s): %v", subject, asset, viewTarget, err)
		} else {
			view.PendingCorrection = pending
		}
	}
	return view, nil
}

// CurrentVersion returns the version for a key, 0 when the key is unseen.
func (s *Service) CurrentVersion(ctx context.Context, subject, asset, viewTarget string) (uint64, error) {
	entry, err := s.repo.FindByKey(ctx, subject, asset, viewTarget)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return entry.Version, nil
}

func (s *Service) validate(attempt WriteAttempt) (string, bool) {
	if attempt.Subject == "" {
		return "empty subject", false
	}
	if attempt.Asset == "" {
		return "empty asset", false
	}
	if attempt.ViewTarget == "" {
		return "empty view target", false
	}
	if attempt.RequestID == "" {
		return "empty request id", false
	}
	if !isDecimal(attempt.Collateral) {
		return "malformed collateral value", false
	}
	if !isDecimal(attempt.Debt) {
		return "malformed debt value", false
	}
	return "", true
}

// isDecimal accepts non-negative decimal strings ("0", "125", "17.5"). The
// values stay opaque otherwise; only well-formedness is checked here.
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		if r == '.' {
			if dot || i == 0 || i == len(s)-1 {
				return false
			}
			dot = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var outcomeActions = map[Outcome]string{
	OutcomeApplied:      "applied",
	OutcomeDuplicate:    "rejected-duplicate",
	OutcomeStaleVersion: "rejected-stale-version",
	OutcomeOutOfOrder:   "rejected-out-of-order",
	OutcomeInvalid:      "rejected-invalid",
}

func (s *Service) audit(ctx context.Context, attempt WriteAttempt, result ApplyResult, before uint64) {
	if s.auditor == nil {
		return
	}
	detail := result.Detail
	if detail == "" {
		detail = fmt.Sprintf("request_id=%s source_ref=%s", attempt.RequestID, attempt.SourceRef)
	}
	s.auditor.RecordWrite(ctx, attempt.Subject, attempt.Asset, attempt.ViewTarget, outcomeActions[result.Outcome], actorWritePath, before, result.Version, detail)
}

func (s *Service) refreshSnapshot(ctx context.Context, entry *Entry) {
	if s.snapshot == nil {
		return
	}
	s.snapshot.StoreEntry(ctx, entry)
}
