package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/auth"
)

// LifecycleTokenRepository persists at most one pending lifecycle token per
// (subject, purpose). Consume is atomic: the first caller to clear the slot
// wins, a concurrent second caller observes it as absent.
type LifecycleTokenRepository interface {
	Save(ctx context.Context, token *auth.LifecycleToken) error
	FindByValue(ctx context.Context, purpose auth.TokenPurpose, value string) (*auth.LifecycleToken, error)
	Consume(ctx context.Context, subjectID string, purpose auth.TokenPurpose) (bool, error)
}

type lifecycleTokenRepository struct {
	pool *pgxpool.Pool
}

// NewLifecycleTokenRepository constructs a Postgres-backed implementation.
func NewLifecycleTokenRepository(pool *pgxpool.Pool) LifecycleTokenRepository {
	return &lifecycleTokenRepository{pool: pool}
}

func (r *lifecycleTokenRepository) Save(ctx context.Context, token *auth.LifecycleToken) error {
	const query = `
        INSERT INTO lifecycle_tokens (subject_id, purpose, token, expires_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (subject_id, purpose)
        DO UPDATE SET token=EXCLUDED.token, expires_at=EXCLUDED.expires_at, created_at=NOW()`

	_, err := r.pool.Exec(ctx, query,
		token.SubjectID,
		string(token.Purpose),
		token.Value,
		token.ExpiresAt,
	)
	return err
}

func (r *lifecycleTokenRepository) FindByValue(ctx context.Context, purpose auth.TokenPurpose, value string) (*auth.LifecycleToken, error) {
	const query = `
        SELECT subject_id, purpose, token, expires_at
        FROM lifecycle_tokens WHERE purpose=$1 AND token=$2`

	var token auth.LifecycleToken
	if err := r.pool.QueryRow(ctx, query, string(purpose), value).Scan(
		&token.SubjectID,
		&token.Purpose,
		&token.Value,
		&token.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *lifecycleTokenRepository) Consume(ctx context.Context, subjectID string, purpose auth.TokenPurpose) (bool, error) {
	const query = `
        DELETE FROM lifecycle_tokens WHERE subject_id=$1 AND purpose=$2`

	cmd, err := r.pool.Exec(ctx, query, subjectID, string(purpose))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
