package billing

import "context"

// Debit is one append-only charge against a user's credit pool. JobID doubles
// as the idempotency key so a crash-restart re-run of the same job reconciles
// to a single charge.
type Debit struct {
	UserID int64
	JobID  string
	Amount float64
	Tier   Tier
	Pool   Pool
}

// Ledger records debits. Implementations must tolerate replays of the same
// JobID without double-charging.
type Ledger interface {
	RecordDebit(ctx context.Context, debit Debit) error
}
