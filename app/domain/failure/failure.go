package failure

import (
	"openlend.ai/position-cache/app/domain/retryjob"
)

// Signal is the durable record of a push that could not be applied outside
// the normal stale/duplicate rejection path: the caller's own call failed,
// the store was unreachable, or target resolution broke. The attempted values
// are diagnostic only; recovery re-reads the ledger and never trusts them.
type Signal struct {
	Subject             string
	Asset               string
	ViewTarget          string
	AttemptedCollateral string
	AttemptedDebt       string
	ReasonCode          retryjob.ReasonCode
	ReasonDetail        string
	SourceRef           string
}
