package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pixelpop/server/internal/billing"
)

// LedgerRepositoryPG implements billing.Ledger backed by PostgreSQL. Debits
// are append-only rows; the unique reference column makes pipeline re-runs
// after a crash-restart reconcile to a single charge.
type LedgerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository backed by PostgreSQL.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{pool: pool}
}

// RecordDebit appends one charge keyed by job id. Replays are absorbed by the
// conflict clause.
func (r *LedgerRepositoryPG) RecordDebit(ctx context.Context, debit billing.Debit) error {
	query := `
INSERT INTO user_transactions (user_id, amount, transaction_type, tier, pool, reference)
VALUES ($1, $2, 'generation_debit', $3, $4, $5)
ON CONFLICT (reference) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query,
		debit.UserID,
		-debit.Amount,
		string(debit.Tier),
		string(debit.Pool),
		debit.JobID,
	)
	if err != nil {
		return fmt.Errorf("repo: record debit for job %s: %w", debit.JobID, err)
	}
	return nil
}

var _ billing.Ledger = (*LedgerRepositoryPG)(nil)
