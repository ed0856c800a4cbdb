package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stayvia/user-service/internal/domain"
)

type PasswordResetRepository struct {
	db *sqlx.DB
}

func NewPasswordResetRepo(db *sqlx.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) (*domain.PasswordResetToken, error) {
	const query = `
        INSERT INTO password_reset_token (token_digest, user_id, is_used, is_valid, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, token_digest, user_id, is_used, is_valid, expires_at, created_at
    `
	row := ext(ctx, r.db).QueryRowxContext(ctx, query,
		token.TokenDigest, token.UserID, token.Used, token.Valid, token.ExpiresAt)
	var created domain.PasswordResetToken
	if err := row.StructScan(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *PasswordResetRepository) FindByDigest(ctx context.Context, digest string) (*domain.PasswordResetToken, error) {
	const query = `
        SELECT id, token_digest, user_id, is_used, is_valid, expires_at, created_at
        FROM password_reset_token
        WHERE token_digest = $1
    `
	var token domain.PasswordResetToken
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &token, query, digest); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id int64) error {
	const query = `UPDATE password_reset_token SET is_used = TRUE WHERE id = $1`
	_, err := ext(ctx, r.db).ExecContext(ctx, query, id)
	return err
}

func (r *PasswordResetRepository) InvalidateAllValidUnused(ctx context.Context, userID uuid.UUID) error {
	const query = `
        UPDATE password_reset_token
        SET is_valid = FALSE
        WHERE user_id = $1 AND is_used = FALSE AND is_valid = TRUE
    `
	_, err := ext(ctx, r.db).ExecContext(ctx, query, userID)
	return err
}
