package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pixelpop/server/internal/domain"
)

// GenerationRepositoryPG mirrors terminal job transitions into PostgreSQL so
// the rest of the product can query generation history after queue records
// expire.
type GenerationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewGenerationRepository creates a new generation history repository.
func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{pool: pool}
}

// UpsertStatus records the job's latest status alongside its result URL or
// failure reason.
func (r *GenerationRepositoryPG) UpsertStatus(ctx context.Context, jobID string, userID int64, status domain.JobStatus, resultURL, errMsg string) error {
	query := `
INSERT INTO generations (id, user_id, status, result_url, error_message, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW())
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    result_url = COALESCE(EXCLUDED.result_url, generations.result_url),
    error_message = EXCLUDED.error_message,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query, jobID, userID, string(status), resultURL, errMsg)
	if err != nil {
		return fmt.Errorf("repo: upsert generation %s: %w", jobID, err)
	}
	return nil
}
