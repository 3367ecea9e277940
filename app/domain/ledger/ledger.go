package ledger

import "context"

// Balances is the authoritative collateral/debt pair for one (subject, asset)
// position, as reported by the ledger at the instant of the read. Amounts stay
// opaque decimal strings; this service never does arithmetic on them.
type Balances struct {
	Collateral string
	Debt       string
}

// Reader reads authoritative balances from the external ledger. The ledger is
// assumed strongly consistent at the instant of the read; callers must re-read
// rather than reuse values captured earlier.
type Reader interface {
	ReadBalances(ctx context.Context, subject, asset string) (Balances, error)
}
