package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stayvia/user-service/internal/domain"
	"github.com/stayvia/user-service/internal/repository/ports"
)

// ProfileChangeDispatcher announces identity-relevant profile changes
// (wallet linkage, role set) to downstream consumers. Best-effort.
type ProfileChangeDispatcher interface {
	Send(ctx context.Context, userID uuid.UUID, complete bool) error
}

var walletAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

type UserService struct {
	users    ports.UserRepository
	uow      ports.UnitOfWork
	profiles ProfileChangeDispatcher
}

func NewUserService(users ports.UserRepository, uow ports.UnitOfWork, profiles ProfileChangeDispatcher) *UserService {
	return &UserService{users: users, uow: uow, profiles: profiles}
}

func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

type UpdateProfileInput struct {
	FirstName     *string
	LastName      *string
	Birthday      *time.Time
	WalletAddress *string
}

// UpdateProfile applies partial updates to the caller's profile. A wallet
// address is either a valid Ethereum address or blank (which clears it);
// wallet changes dispatch a profile-change event with the completeness flag.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) error {
	walletChanged := false
	var walletComplete bool

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		user, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}

		first := nonEmpty(input.FirstName)
		last := nonEmpty(input.LastName)
		if first != nil || last != nil {
			if err := s.users.UpdateName(ctx, id, first, last); err != nil {
				return err
			}
		}

		if input.Birthday != nil {
			if !isAdult(*input.Birthday, time.Now()) {
				return ErrUnderRequiredAge
			}
			if err := s.users.UpdateBirthday(ctx, id, *input.Birthday); err != nil {
				return err
			}
		}

		if input.WalletAddress != nil {
			next := strings.TrimSpace(*input.WalletAddress)
			if next != "" && !walletAddressPattern.MatchString(next) {
				return ErrInvalidWalletAddress
			}
			var nextPtr *string
			if next != "" {
				nextPtr = &next
			}
			if !equalWallet(user.WalletAddress, nextPtr) {
				if err := s.users.UpdateWallet(ctx, id, nextPtr); err != nil {
					return err
				}
				walletChanged = true
				walletComplete = nextPtr != nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if walletChanged {
		s.dispatchProfileChange(ctx, id, walletComplete)
	}
	return nil
}

// BecomeHost replaces the role set with {host}, matching the self-service
// upgrade flow.
func (s *UserService) BecomeHost(ctx context.Context, id uuid.UUID) error {
	if err := s.replaceRoles(ctx, id, []domain.Role{domain.RoleHost}); err != nil {
		return err
	}
	s.dispatchProfileChange(ctx, id, false)
	return nil
}

func (s *UserService) AddHostRole(ctx context.Context, id uuid.UUID) error {
	return s.mutateRoles(ctx, id, func(roles []domain.Role) []domain.Role {
		return addRole(roles, domain.RoleHost)
	})
}

func (s *UserService) RemoveHostRole(ctx context.Context, id uuid.UUID) error {
	return s.mutateRoles(ctx, id, func(roles []domain.Role) []domain.Role {
		return removeRole(roles, domain.RoleHost)
	})
}

func (s *UserService) AddAdminRole(ctx context.Context, id uuid.UUID) error {
	return s.mutateRoles(ctx, id, func(roles []domain.Role) []domain.Role {
		return addRole(roles, domain.RoleAdmin)
	})
}

func (s *UserService) RemoveAdminRole(ctx context.Context, id uuid.UUID) error {
	return s.mutateRoles(ctx, id, func(roles []domain.Role) []domain.Role {
		return removeRole(roles, domain.RoleAdmin)
	})
}

func (s *UserService) EnableUser(ctx context.Context, id uuid.UUID) error {
	return s.setEnabled(ctx, id, true)
}

func (s *UserService) DisableUser(ctx context.Context, id uuid.UUID) error {
	return s.setEnabled(ctx, id, false)
}

func (s *UserService) setEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return s.uow.Do(ctx, func(ctx context.Context) error {
		if err := s.users.SetEnabled(ctx, id, enabled); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
}

func (s *UserService) mutateRoles(ctx context.Context, id uuid.UUID, mutate func([]domain.Role) []domain.Role) error {
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		user, err := s.FindByID(ctx, id)
		if err != nil {
			return err
		}
		next := mutate(append([]domain.Role(nil), user.Roles...))
		if len(next) == 0 {
			next = domain.DefaultRoles()
		}
		return s.users.ReplaceRoles(ctx, id, next)
	})
	if err != nil {
		return err
	}
	s.dispatchProfileChange(ctx, id, false)
	return nil
}

func (s *UserService) replaceRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	return s.uow.Do(ctx, func(ctx context.Context) error {
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return s.users.ReplaceRoles(ctx, id, roles)
	})
}

func (s *UserService) dispatchProfileChange(ctx context.Context, id uuid.UUID, complete bool) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.Send(ctx, id, complete); err != nil {
		log.Printf("profile change dispatch failed (user=%s): %v", id, err)
	}
}

func addRole(roles []domain.Role, role domain.Role) []domain.Role {
	for _, r := range roles {
		if r == role {
			return roles
		}
	}
	return append(roles, role)
}

func removeRole(roles []domain.Role, role domain.Role) []domain.Role {
	out := roles[:0]
	for _, r := range roles {
		if r != role {
			out = append(out, r)
		}
	}
	return out
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalWallet(a, b *string) bool {
	normalize := func(v *string) string {
		if v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	}
	return normalize(a) == normalize(b)
}
