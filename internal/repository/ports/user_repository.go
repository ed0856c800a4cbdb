package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stayvia/user-service/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]domain.User, error)

	SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName *string) error
	UpdateBirthday(ctx context.Context, id uuid.UUID, birthday time.Time) error
	UpdateWallet(ctx context.Context, id uuid.UUID, walletAddress *string) error
	UpdateProfilePicture(ctx context.Context, id uuid.UUID, url *string) error
	ReplaceRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error
}
