package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/stayvia/user-service/internal/domain"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) (*domain.PasswordResetToken, error)
	FindByDigest(ctx context.Context, digest string) (*domain.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id int64) error
	// InvalidateAllValidUnused flips valid=false on every token of the user
	// that is still valid and unused; the just-consumed token is excluded by
	// its used flag.
	InvalidateAllValidUnused(ctx context.Context, userID uuid.UUID) error
}
