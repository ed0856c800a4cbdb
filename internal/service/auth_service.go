package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stayvia/user-service/internal/domain"
	"github.com/stayvia/user-service/internal/repository/ports"
	"github.com/stayvia/user-service/internal/util"
)

// NotificationDispatcher publishes account emails to the message bus.
// Dispatch is best-effort; AuthService logs failures and keeps going.
type NotificationDispatcher interface {
	Send(ctx context.Context, n domain.Notification) error
}

type AuthService struct {
	users    ports.UserRepository
	resets   ports.PasswordResetRepository
	uow      ports.UnitOfWork
	hasher   *util.PasswordHasher
	jwt      *util.JWTManager
	notifier NotificationDispatcher

	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewAuthService(
	users ports.UserRepository,
	resets ports.PasswordResetRepository,
	uow ports.UnitOfWork,
	hasher *util.PasswordHasher,
	jwt *util.JWTManager,
	notifier NotificationDispatcher,
	verificationTTL, resetTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:           users,
		resets:          resets,
		uow:             uow,
		hasher:          hasher,
		jwt:             jwt,
		notifier:        notifier,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
	}
}

type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	PhoneNumber int64
	Birthday    time.Time
	Role        *domain.Role
}

type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
}

// Register creates a disabled account with a fresh verification artifact and
// dispatches welcome and verification notifications.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyUsed
	}
	if !isAdult(input.Birthday, time.Now()) {
		return nil, ErrUnderRequiredAge
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	code, err := util.GenerateVerificationCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.verificationTTL)

	roles := domain.DefaultRoles()
	if input.Role != nil {
		roles = []domain.Role{*input.Role}
	}

	user := &domain.User{
		FirstName:                 input.FirstName,
		LastName:                  input.LastName,
		Email:                     input.Email,
		PasswordHash:              hash,
		Birthday:                  input.Birthday,
		PhoneNumber:               input.PhoneNumber,
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &expiresAt,
		Enabled:                   false,
		Score:                     domain.DefaultScore,
		Roles:                     roles,
	}

	var created *domain.User
	err = s.uow.Do(ctx, func(ctx context.Context) error {
		created, err = s.users.Create(ctx, user)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyUsed
		}
		return nil, err
	}

	s.dispatch(ctx, domain.Notification{
		UserID:  created.ID,
		Channel: domain.ChannelWelcomeEmail,
		Message: map[string]any{
			"userEmail": created.Email,
			"fullName":  created.FullName(),
		},
	})
	s.dispatch(ctx, domain.Notification{
		UserID:  created.ID,
		Channel: domain.ChannelAccountVerificationEmail,
		Message: map[string]any{
			"userEmail":        created.Email,
			"fullName":         created.FullName(),
			"verificationCode": code,
			"expiresAt":        expiresAt.Format(time.RFC3339),
		},
	})

	return created, nil
}

// Login verifies the password before looking at the enabled flag, so a
// disabled-account response never leaks to callers who don't know the
// password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}
	if !user.Enabled {
		return nil, ErrAccountDisabled
	}

	token, _, err := s.jwt.Generate(user.ID, user.Roles)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresIn: s.jwt.ExpiresIn()}, nil
}

// VerifyUser checks the supplied code against the account's verification
// artifact. Expiry is checked before equality; success consumes the artifact
// and enables the account.
func (s *AuthService) VerifyUser(ctx context.Context, email, code string) error {
	return s.uow.Do(ctx, func(ctx context.Context) error {
		user, err := s.findUserByEmail(ctx, email)
		if err != nil {
			return err
		}

		if user.VerificationCode == nil {
			return ErrWrongVerificationCode
		}
		if user.VerificationCodeExpiresAt == nil || !time.Now().Before(*user.VerificationCodeExpiresAt) {
			return ErrExpiredVerificationCode
		}
		if *user.VerificationCode != code {
			return ErrWrongVerificationCode
		}

		return s.users.MarkVerified(ctx, user.ID)
	})
}

// ResendVerificationCode replaces the current artifact with a fresh code and
// expiry. Already-verified accounts are rejected.
func (s *AuthService) ResendVerificationCode(ctx context.Context, email string) error {
	var user *domain.User
	var code string
	var expiresAt time.Time

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.findUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user.Enabled {
			return ErrAlreadyVerified
		}

		code, err = util.GenerateVerificationCode()
		if err != nil {
			return err
		}
		expiresAt = time.Now().Add(s.verificationTTL)
		return s.users.SetVerificationCode(ctx, user.ID, code, expiresAt)
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, domain.Notification{
		UserID:  user.ID,
		Channel: domain.ChannelAccountVerificationEmail,
		Message: map[string]any{
			"userEmail":        user.Email,
			"fullName":         user.FullName(),
			"verificationCode": code,
			"expiresAt":        expiresAt.Format(time.RFC3339),
		},
	})
	return nil
}

// RequestPasswordReset issues a fresh reset secret for the account and stores
// only its digest. The raw secret goes out on the notification bus; a failed
// dispatch does not undo the token.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := util.GenerateVerificationCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.resetTTL)

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		_, err := s.resets.Create(ctx, &domain.PasswordResetToken{
			TokenDigest: util.HashToken(code),
			UserID:      user.ID,
			Used:        false,
			Valid:       true,
			ExpiresAt:   expiresAt,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.dispatch(ctx, domain.Notification{
		UserID:  user.ID,
		Channel: domain.ChannelPasswordResetEmail,
		Message: map[string]any{
			"userEmail": user.Email,
			"fullName":  user.FullName(),
			"token":     code,
			"expiresAt": expiresAt.Format(time.RFC3339),
		},
	})
	return nil
}

// ValidateResetToken checks a raw reset secret without consuming it.
func (s *AuthService) ValidateResetToken(ctx context.Context, rawToken string) error {
	token, err := s.findResetByRaw(ctx, rawToken)
	if err != nil {
		return err
	}
	return checkResetToken(token, time.Now())
}

// ValidateResetCode additionally binds the secret to the account owning the
// supplied email; a code issued for another account is invalid, not unknown.
func (s *AuthService) ValidateResetCode(ctx context.Context, email, code string) error {
	user, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := s.findResetByRaw(ctx, code)
	if err != nil {
		return err
	}
	if token.UserID != user.ID {
		return ErrResetTokenInvalid
	}
	return checkResetToken(token, time.Now())
}

// ResetPasswordWithToken consumes a reset secret: the full validation chain
// runs again at consumption time, the password is rehashed, the token is
// marked used, and every other still-valid unused token of the account is
// invalidated in the same transaction.
func (s *AuthService) ResetPasswordWithToken(ctx context.Context, rawToken, newPassword string) error {
	return s.uow.Do(ctx, func(ctx context.Context) error {
		token, err := s.findResetByRaw(ctx, rawToken)
		if err != nil {
			return err
		}
		if err := checkResetToken(token, time.Now()); err != nil {
			return err
		}
		return s.consumeReset(ctx, token, newPassword)
	})
}

// ResetPasswordWithCode is the email-bound variant of ResetPasswordWithToken.
func (s *AuthService) ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error {
	return s.uow.Do(ctx, func(ctx context.Context) error {
		user, err := s.findUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		token, err := s.findResetByRaw(ctx, code)
		if err != nil {
			return err
		}
		if token.UserID != user.ID {
			return ErrResetTokenInvalid
		}
		if err := checkResetToken(token, time.Now()); err != nil {
			return err
		}
		return s.consumeReset(ctx, token, newPassword)
	})
}

// ChangePassword is the authenticated-session variant: the current password
// must verify before the new one is stored.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	return s.uow.Do(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		if !s.hasher.Verify(currentPassword, user.PasswordHash) {
			return ErrWrongPassword
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		return s.users.UpdatePassword(ctx, user.ID, hash)
	})
}

// Authenticate resolves a bearer token to its account for the HTTP
// middleware.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) consumeReset(ctx context.Context, token *domain.PasswordResetToken, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, token.UserID, hash); err != nil {
		return err
	}
	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		return err
	}
	return s.resets.InvalidateAllValidUnused(ctx, token.UserID)
}

func (s *AuthService) findUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) findResetByRaw(ctx context.Context, raw string) (*domain.PasswordResetToken, error) {
	token, err := s.resets.FindByDigest(ctx, util.HashToken(raw))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

func (s *AuthService) dispatch(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		log.Printf("notification dispatch failed (channel=%s user=%s): %v", n.Channel, n.UserID, err)
	}
}

// checkResetToken runs the read-time state checks in fixed order so the most
// specific error surfaces: expired, then invalidated, then used.
func checkResetToken(token *domain.PasswordResetToken, now time.Time) error {
	if !now.Before(token.ExpiresAt) {
		return ErrResetTokenExpired
	}
	if !token.Valid {
		return ErrResetTokenInvalid
	}
	if token.Used {
		return ErrResetTokenUsed
	}
	return nil
}

// isAdult truncates to whole years; the exact 18th birthday counts as adult.
func isAdult(birthday, now time.Time) bool {
	return !now.Before(birthday.AddDate(18, 0, 0))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
