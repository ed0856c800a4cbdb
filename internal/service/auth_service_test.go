package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/stayvia/user-service/internal/domain"
	"github.com/stayvia/user-service/internal/util"
)

type memUserRepo struct {
	byID    map[uuid.UUID]*domain.User
	byEmail map[string]uuid.UUID

	createErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    map[uuid.UUID]*domain.User{},
		byEmail: map[string]uuid.UUID{},
	}
}

func (f *memUserRepo) put(user *domain.User) *domain.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	clone := *user
	f.byID[clone.ID] = &clone
	f.byEmail[clone.Email] = clone.ID
	return &clone
}

func (f *memUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[user.Email]; ok {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	created := f.put(user)
	copied := *created
	return &copied, nil
}

func (f *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *f.byID[id]
	return &clone, nil
}

func (f *memUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *memUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *memUserRepo) List(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(f.byID))
	for _, user := range f.byID {
		out = append(out, *user)
	}
	return out, nil
}

func (f *memUserRepo) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.VerificationCode = &code
	user.VerificationCodeExpiresAt = &expiresAt
	return nil
}

func (f *memUserRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Enabled = true
	user.VerificationCode = nil
	user.VerificationCodeExpiresAt = nil
	return nil
}

func (f *memUserRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Enabled = enabled
	return nil
}

func (f *memUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (f *memUserRepo) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName *string) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if firstName != nil {
		user.FirstName = *firstName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
	return nil
}

func (f *memUserRepo) UpdateBirthday(ctx context.Context, id uuid.UUID, birthday time.Time) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Birthday = birthday
	return nil
}

func (f *memUserRepo) UpdateWallet(ctx context.Context, id uuid.UUID, walletAddress *string) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.WalletAddress = walletAddress
	return nil
}

func (f *memUserRepo) UpdateProfilePicture(ctx context.Context, id uuid.UUID, url *string) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.ProfilePicture = url
	return nil
}

func (f *memUserRepo) ReplaceRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	user, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Roles = append([]domain.Role(nil), roles...)
	return nil
}

type memResetRepo struct {
	nextID int64
	tokens map[string]*domain.PasswordResetToken
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{tokens: map[string]*domain.PasswordResetToken{}}
}

func (f *memResetRepo) Create(ctx context.Context, token *domain.PasswordResetToken) (*domain.PasswordResetToken, error) {
	f.nextID++
	clone := *token
	clone.ID = f.nextID
	clone.CreatedAt = time.Now()
	f.tokens[clone.TokenDigest] = &clone
	copied := clone
	return &copied, nil
}

func (f *memResetRepo) FindByDigest(ctx context.Context, digest string) (*domain.PasswordResetToken, error) {
	token, ok := f.tokens[digest]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *token
	return &clone, nil
}

func (f *memResetRepo) MarkUsed(ctx context.Context, id int64) error {
	for _, token := range f.tokens {
		if token.ID == id {
			token.Used = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *memResetRepo) InvalidateAllValidUnused(ctx context.Context, userID uuid.UUID) error {
	for _, token := range f.tokens {
		if token.UserID == userID && !token.Used && token.Valid {
			token.Valid = false
		}
	}
	return nil
}

type passthroughUOW struct{}

func (passthroughUOW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeDispatcher struct {
	sent []domain.Notification
	err  error
}

func (f *fakeDispatcher) Send(ctx context.Context, n domain.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeDispatcher) lastMessage(channel domain.NotificationChannel) map[string]any {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Channel == channel {
			return f.sent[i].Message
		}
	}
	return nil
}

func newAuthServiceForTests(users *memUserRepo, resets *memResetRepo, dispatcher *fakeDispatcher) *AuthService {
	if users == nil {
		users = newMemUserRepo()
	}
	if resets == nil {
		resets = newMemResetRepo()
	}
	if dispatcher == nil {
		dispatcher = &fakeDispatcher{}
	}
	hasher := util.NewPasswordHasher(bcrypt.MinCost)
	jwtManager := util.NewJWTManager("test-secret", time.Hour)
	return NewAuthService(users, resets, passthroughUOW{}, hasher, jwtManager, dispatcher, 15*time.Minute, 15*time.Minute)
}

func adultBirthday() time.Time {
	return time.Now().AddDate(-30, 0, 0)
}

func registerInput(email string) RegisterInput {
	return RegisterInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       email,
		Password:    "SuperSecret1!",
		PhoneNumber: 15551234567,
		Birthday:    adultBirthday(),
	}
}

func TestRegisterSuccess(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	dispatcher := &fakeDispatcher{}
	svc := newAuthServiceForTests(users, nil, dispatcher)

	created, err := svc.Register(ctx, registerInput("test@example.com"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.Enabled {
		t.Fatal("expected account to start disabled")
	}
	if created.Score != domain.DefaultScore {
		t.Fatalf("expected default score, got %d", created.Score)
	}
	if len(created.Roles) != 1 || created.Roles[0] != domain.RoleTenant {
		t.Fatalf("expected default tenant role, got %v", created.Roles)
	}

	stored, err := users.FindByEmail(ctx, "test@example.com")
	if err != nil {
		t.Fatalf("expected user to be persisted: %v", err)
	}
	if stored.VerificationCode == nil || len(*stored.VerificationCode) != 6 {
		t.Fatalf("expected 6-digit verification code, got %v", stored.VerificationCode)
	}
	if stored.VerificationCodeExpiresAt == nil || !stored.VerificationCodeExpiresAt.After(time.Now()) {
		t.Fatal("expected verification expiry in the future")
	}
	if stored.PasswordHash == "SuperSecret1!" || stored.PasswordHash == "" {
		t.Fatal("expected password to be stored hashed")
	}

	if len(dispatcher.sent) != 2 {
		t.Fatalf("expected welcome + verification notifications, got %d", len(dispatcher.sent))
	}
	msg := dispatcher.lastMessage(domain.ChannelAccountVerificationEmail)
	if msg == nil || msg["verificationCode"] != *stored.VerificationCode {
		t.Fatalf("expected raw code in verification notification, got %v", msg)
	}
}

func TestRegisterExplicitRole(t *testing.T) {
	svc := newAuthServiceForTests(nil, nil, nil)
	input := registerInput("host@example.com")
	role := domain.RoleHost
	input.Role = &role

	created, err := svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(created.Roles) != 1 || created.Roles[0] != domain.RoleHost {
		t.Fatalf("expected host role, got %v", created.Roles)
	}
}

func TestRegisterEmailExists(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	users.put(&domain.User{Email: "dup@example.com"})
	svc := newAuthServiceForTests(users, nil, nil)

	_, err := svc.Register(ctx, registerInput("dup@example.com"))
	if !errors.Is(err, ErrEmailAlreadyUsed) {
		t.Fatalf("expected ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestRegisterEmailRace(t *testing.T) {
	users := newMemUserRepo()
	users.createErr = &pgconn.PgError{Code: "23505"}
	svc := newAuthServiceForTests(users, nil, nil)

	_, err := svc.Register(context.Background(), registerInput("race@example.com"))
	if !errors.Is(err, ErrEmailAlreadyUsed) {
		t.Fatalf("expected ErrEmailAlreadyUsed for unique violation, got %v", err)
	}
}

func TestRegisterAgeBoundary(t *testing.T) {
	svc := newAuthServiceForTests(nil, nil, nil)

	t.Run("one day under 18 fails", func(t *testing.T) {
		input := registerInput("young@example.com")
		input.Birthday = time.Now().AddDate(-18, 0, 1)
		_, err := svc.Register(context.Background(), input)
		if !errors.Is(err, ErrUnderRequiredAge) {
			t.Fatalf("expected ErrUnderRequiredAge, got %v", err)
		}
	})

	t.Run("exactly 18 passes", func(t *testing.T) {
		input := registerInput("exactly18@example.com")
		input.Birthday = time.Now().AddDate(-18, 0, 0)
		if _, err := svc.Register(context.Background(), input); err != nil {
			t.Fatalf("expected success at the exact boundary, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hasher := util.NewPasswordHasher(bcrypt.MinCost)
	hash, _ := hasher.Hash("right-password")

	t.Run("user not found", func(t *testing.T) {
		svc := newAuthServiceForTests(nil, nil, nil)
		_, err := svc.Login(ctx, "none@example.com", "whatever")
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		users := newMemUserRepo()
		users.put(&domain.User{Email: "a@example.com", PasswordHash: hash, Enabled: true})
		svc := newAuthServiceForTests(users, nil, nil)
		_, err := svc.Login(ctx, "a@example.com", "wrong")
		if !errors.Is(err, ErrWrongPassword) {
			t.Fatalf("expected ErrWrongPassword, got %v", err)
		}
	})

	t.Run("disabled account with correct password", func(t *testing.T) {
		users := newMemUserRepo()
		users.put(&domain.User{Email: "b@example.com", PasswordHash: hash, Enabled: false})
		svc := newAuthServiceForTests(users, nil, nil)
		_, err := svc.Login(ctx, "b@example.com", "right-password")
		if !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})

	t.Run("success embeds role claims", func(t *testing.T) {
		users := newMemUserRepo()
		users.put(&domain.User{
			Email:        "c@example.com",
			PasswordHash: hash,
			Enabled:      true,
			Roles:        []domain.Role{domain.RoleTenant, domain.RoleHost},
		})
		svc := newAuthServiceForTests(users, nil, nil)

		result, err := svc.Login(ctx, "c@example.com", "right-password")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Token == "" {
			t.Fatal("expected token in result")
		}
		if result.ExpiresIn != time.Hour {
			t.Fatalf("expected configured ttl, got %v", result.ExpiresIn)
		}

		claims, err := util.NewJWTManager("test-secret", time.Hour).Parse(result.Token)
		if err != nil {
			t.Fatalf("expected parsable token: %v", err)
		}
		if len(claims.Roles) != 2 {
			t.Fatalf("expected role claims in token, got %v", claims.Roles)
		}
	})
}

func TestVerifyUser(t *testing.T) {
	ctx := context.Background()
	code := "123456"

	newUser := func(codeVal string, expiry time.Time) (*memUserRepo, *domain.User) {
		users := newMemUserRepo()
		user := users.put(&domain.User{
			Email:                     "verify@example.com",
			VerificationCode:          &codeVal,
			VerificationCodeExpiresAt: &expiry,
		})
		return users, user
	}

	t.Run("success enables and clears artifact", func(t *testing.T) {
		users, user := newUser(code, time.Now().Add(10*time.Minute))
		svc := newAuthServiceForTests(users, nil, nil)
		if err := svc.VerifyUser(ctx, user.Email, code); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := users.FindByID(ctx, user.ID)
		if !stored.Enabled {
			t.Fatal("expected account to be enabled")
		}
		if stored.VerificationCode != nil || stored.VerificationCodeExpiresAt != nil {
			t.Fatal("expected verification artifact to be cleared")
		}
	})

	t.Run("expired wins over wrong code", func(t *testing.T) {
		users, user := newUser(code, time.Now().Add(-time.Minute))
		svc := newAuthServiceForTests(users, nil, nil)
		err := svc.VerifyUser(ctx, user.Email, "000000")
		if !errors.Is(err, ErrExpiredVerificationCode) {
			t.Fatalf("expected ErrExpiredVerificationCode, got %v", err)
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		users, user := newUser(code, time.Now().Add(10*time.Minute))
		svc := newAuthServiceForTests(users, nil, nil)
		err := svc.VerifyUser(ctx, user.Email, "654321")
		if !errors.Is(err, ErrWrongVerificationCode) {
			t.Fatalf("expected ErrWrongVerificationCode, got %v", err)
		}
	})

	t.Run("no artifact attached", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "bare@example.com"})
		svc := newAuthServiceForTests(users, nil, nil)
		err := svc.VerifyUser(ctx, user.Email, code)
		if !errors.Is(err, ErrWrongVerificationCode) {
			t.Fatalf("expected ErrWrongVerificationCode, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		svc := newAuthServiceForTests(nil, nil, nil)
		err := svc.VerifyUser(ctx, "nobody@example.com", code)
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestResendVerificationCode(t *testing.T) {
	ctx := context.Background()

	t.Run("already verified", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "done@example.com", Enabled: true})
		svc := newAuthServiceForTests(users, nil, nil)
		err := svc.ResendVerificationCode(ctx, user.Email)
		if !errors.Is(err, ErrAlreadyVerified) {
			t.Fatalf("expected ErrAlreadyVerified, got %v", err)
		}
	})

	t.Run("regenerates artifact and dispatches", func(t *testing.T) {
		stale := "111111"
		staleExpiry := time.Now().Add(-time.Hour)
		users := newMemUserRepo()
		user := users.put(&domain.User{
			Email:                     "pending@example.com",
			VerificationCode:          &stale,
			VerificationCodeExpiresAt: &staleExpiry,
		})
		dispatcher := &fakeDispatcher{}
		svc := newAuthServiceForTests(users, nil, dispatcher)

		if err := svc.ResendVerificationCode(ctx, user.Email); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := users.FindByID(ctx, user.ID)
		if stored.VerificationCode == nil || *stored.VerificationCode == stale {
			t.Fatal("expected a fresh verification code")
		}
		if stored.VerificationCodeExpiresAt == nil || !stored.VerificationCodeExpiresAt.After(time.Now()) {
			t.Fatal("expected expiry to be reset from now")
		}
		msg := dispatcher.lastMessage(domain.ChannelAccountVerificationEmail)
		if msg == nil || msg["verificationCode"] != *stored.VerificationCode {
			t.Fatalf("expected new code in notification, got %v", msg)
		}
	})
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown account", func(t *testing.T) {
		svc := newAuthServiceForTests(nil, nil, nil)
		err := svc.RequestPasswordReset(ctx, "none@example.com")
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("stores digest and dispatches raw secret", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "reset@example.com"})
		resets := newMemResetRepo()
		dispatcher := &fakeDispatcher{}
		svc := newAuthServiceForTests(users, resets, dispatcher)

		if err := svc.RequestPasswordReset(ctx, user.Email); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		msg := dispatcher.lastMessage(domain.ChannelPasswordResetEmail)
		if msg == nil {
			t.Fatal("expected reset notification")
		}
		raw, _ := msg["token"].(string)
		if len(raw) != 6 {
			t.Fatalf("expected 6-digit secret, got %q", raw)
		}
		if _, ok := resets.tokens[raw]; ok {
			t.Fatal("raw secret must never be stored")
		}
		stored, ok := resets.tokens[util.HashToken(raw)]
		if !ok {
			t.Fatal("expected token stored under its digest")
		}
		if stored.Used || !stored.Valid {
			t.Fatalf("expected fresh token to be valid and unused: %+v", stored)
		}
		if !stored.ExpiresAt.After(time.Now()) {
			t.Fatal("expected future expiry")
		}
	})

	t.Run("dispatch failure does not abort token creation", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "reset2@example.com"})
		resets := newMemResetRepo()
		dispatcher := &fakeDispatcher{err: errors.New("bus down")}
		svc := newAuthServiceForTests(users, resets, dispatcher)

		if err := svc.RequestPasswordReset(ctx, user.Email); err != nil {
			t.Fatalf("expected dispatch failure to be swallowed, got %v", err)
		}
		if len(resets.tokens) != 1 {
			t.Fatalf("expected token to exist, got %d", len(resets.tokens))
		}
	})
}

func seedResetToken(resets *memResetRepo, userID uuid.UUID, raw string, mutate func(*domain.PasswordResetToken)) {
	token := &domain.PasswordResetToken{
		TokenDigest: util.HashToken(raw),
		UserID:      userID,
		Valid:       true,
		ExpiresAt:   time.Now().Add(15 * time.Minute),
	}
	if mutate != nil {
		mutate(token)
	}
	_, _ = resets.Create(context.Background(), token)
}

func TestValidateResetTokenBranches(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("not found", func(t *testing.T) {
		svc := newAuthServiceForTests(nil, newMemResetRepo(), nil)
		if err := svc.ValidateResetToken(ctx, "999999"); !errors.Is(err, ErrResetTokenNotFound) {
			t.Fatalf("expected ErrResetTokenNotFound, got %v", err)
		}
	})

	t.Run("expired beats invalidated and used", func(t *testing.T) {
		resets := newMemResetRepo()
		seedResetToken(resets, userID, "111111", func(tok *domain.PasswordResetToken) {
			tok.ExpiresAt = time.Now().Add(-time.Minute)
			tok.Valid = false
			tok.Used = true
		})
		svc := newAuthServiceForTests(nil, resets, nil)
		if err := svc.ValidateResetToken(ctx, "111111"); !errors.Is(err, ErrResetTokenExpired) {
			t.Fatalf("expected ErrResetTokenExpired, got %v", err)
		}
	})

	t.Run("invalidated beats used", func(t *testing.T) {
		resets := newMemResetRepo()
		seedResetToken(resets, userID, "222222", func(tok *domain.PasswordResetToken) {
			tok.Valid = false
			tok.Used = true
		})
		svc := newAuthServiceForTests(nil, resets, nil)
		if err := svc.ValidateResetToken(ctx, "222222"); !errors.Is(err, ErrResetTokenInvalid) {
			t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
		}
	})

	t.Run("used", func(t *testing.T) {
		resets := newMemResetRepo()
		seedResetToken(resets, userID, "333333", func(tok *domain.PasswordResetToken) {
			tok.Used = true
		})
		svc := newAuthServiceForTests(nil, resets, nil)
		if err := svc.ValidateResetToken(ctx, "333333"); !errors.Is(err, ErrResetTokenUsed) {
			t.Fatalf("expected ErrResetTokenUsed, got %v", err)
		}
	})

	t.Run("live token passes", func(t *testing.T) {
		resets := newMemResetRepo()
		seedResetToken(resets, userID, "444444", nil)
		svc := newAuthServiceForTests(nil, resets, nil)
		if err := svc.ValidateResetToken(ctx, "444444"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestValidateResetCodeOwnerBinding(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	owner := users.put(&domain.User{Email: "owner@example.com"})
	other := users.put(&domain.User{Email: "other@example.com"})

	resets := newMemResetRepo()
	// Expired token that belongs to someone else: the ownership check runs
	// before the expiry check.
	seedResetToken(resets, other.ID, "555555", func(tok *domain.PasswordResetToken) {
		tok.ExpiresAt = time.Now().Add(-time.Minute)
	})
	svc := newAuthServiceForTests(users, resets, nil)

	if err := svc.ValidateResetCode(ctx, owner.Email, "555555"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid for foreign code, got %v", err)
	}
	if err := svc.ValidateResetCode(ctx, "ghost@example.com", "555555"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResetPasswordWithToken(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes and bulk-invalidates", func(t *testing.T) {
		users := newMemUserRepo()
		hasher := util.NewPasswordHasher(bcrypt.MinCost)
		oldHash, _ := hasher.Hash("old-password")
		user := users.put(&domain.User{Email: "consume@example.com", PasswordHash: oldHash})

		resets := newMemResetRepo()
		seedResetToken(resets, user.ID, "111111", nil)
		seedResetToken(resets, user.ID, "222222", nil)
		svc := newAuthServiceForTests(users, resets, nil)

		if err := svc.ResetPasswordWithToken(ctx, "111111", "NewPassword1!"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := users.FindByID(ctx, user.ID)
		if stored.PasswordHash == oldHash {
			t.Fatal("expected password hash to change")
		}
		if !hasher.Verify("NewPassword1!", stored.PasswordHash) {
			t.Fatal("expected new password to verify")
		}

		consumed := resets.tokens[util.HashToken("111111")]
		if !consumed.Used {
			t.Fatal("expected consumed token to be marked used")
		}
		sibling := resets.tokens[util.HashToken("222222")]
		if sibling.Valid {
			t.Fatal("expected sibling token to be invalidated")
		}
		if err := svc.ValidateResetToken(ctx, "222222"); !errors.Is(err, ErrResetTokenInvalid) {
			t.Fatalf("expected sibling to fail validation, got %v", err)
		}
	})

	t.Run("replay of consumed token fails with used", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "replay@example.com"})
		resets := newMemResetRepo()
		seedResetToken(resets, user.ID, "666666", nil)
		svc := newAuthServiceForTests(users, resets, nil)

		if err := svc.ResetPasswordWithToken(ctx, "666666", "FirstPass1!"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := svc.ResetPasswordWithToken(ctx, "666666", "SecondPass1!"); !errors.Is(err, ErrResetTokenUsed) {
			t.Fatalf("expected ErrResetTokenUsed on replay, got %v", err)
		}
	})

	t.Run("expired token fails even when untouched", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "late@example.com"})
		resets := newMemResetRepo()
		seedResetToken(resets, user.ID, "777777", func(tok *domain.PasswordResetToken) {
			tok.ExpiresAt = time.Now().Add(-time.Second)
		})
		svc := newAuthServiceForTests(users, resets, nil)

		if err := svc.ResetPasswordWithToken(ctx, "777777", "NewPass1!"); !errors.Is(err, ErrResetTokenExpired) {
			t.Fatalf("expected ErrResetTokenExpired, got %v", err)
		}
	})
}

func TestResetPasswordWithCode(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	user := users.put(&domain.User{Email: "bycode@example.com"})
	stranger := users.put(&domain.User{Email: "stranger@example.com"})
	resets := newMemResetRepo()
	seedResetToken(resets, user.ID, "888888", nil)
	svc := newAuthServiceForTests(users, resets, nil)

	if err := svc.ResetPasswordWithCode(ctx, stranger.Email, "888888", "NewPass1!"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected ErrResetTokenInvalid for foreign email, got %v", err)
	}
	if err := svc.ResetPasswordWithCode(ctx, user.Email, "888888", "NewPass1!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resets.tokens[util.HashToken("888888")].Used {
		t.Fatal("expected token to be consumed")
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	hasher := util.NewPasswordHasher(bcrypt.MinCost)
	oldHash, _ := hasher.Hash("old-pass")

	t.Run("success", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "cp@example.com", PasswordHash: oldHash})
		svc := newAuthServiceForTests(users, nil, nil)

		if err := svc.ChangePassword(ctx, user.ID, "old-pass", "NewPassword1!"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := users.FindByID(ctx, user.ID)
		if !hasher.Verify("NewPassword1!", stored.PasswordHash) {
			t.Fatal("expected new password to be stored")
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		users := newMemUserRepo()
		user := users.put(&domain.User{Email: "cp2@example.com", PasswordHash: oldHash})
		svc := newAuthServiceForTests(users, nil, nil)

		err := svc.ChangePassword(ctx, user.ID, "nope", "NewPassword1!")
		if !errors.Is(err, ErrWrongPassword) {
			t.Fatalf("expected ErrWrongPassword, got %v", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		svc := newAuthServiceForTests(nil, nil, nil)
		err := svc.ChangePassword(ctx, uuid.New(), "old", "new")
		if !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	user := users.put(&domain.User{Email: "auth@example.com", Enabled: true, Roles: domain.DefaultRoles()})
	svc := newAuthServiceForTests(users, nil, nil)

	token, _, err := util.NewJWTManager("test-secret", time.Hour).Generate(user.ID, user.Roles)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	authenticated, err := svc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authenticated.ID != user.ID {
		t.Fatal("expected the token's account")
	}

	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	dispatcher := &fakeDispatcher{}
	svc := newAuthServiceForTests(users, nil, dispatcher)

	input := registerInput("journey@example.com")
	role := domain.RoleHost
	input.Role = &role
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, input.Email, input.Password); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected login to fail before verification, got %v", err)
	}

	msg := dispatcher.lastMessage(domain.ChannelAccountVerificationEmail)
	code, _ := msg["verificationCode"].(string)
	if err := svc.VerifyUser(ctx, input.Email, code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	result, err := svc.Login(ctx, input.Email, input.Password)
	if err != nil {
		t.Fatalf("login after verify: %v", err)
	}
	claims, err := util.NewJWTManager("test-secret", time.Hour).Parse(result.Token)
	if err != nil {
		t.Fatalf("parse credential: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != domain.RoleHost {
		t.Fatalf("expected host role claim, got %v", claims.Roles)
	}
}
