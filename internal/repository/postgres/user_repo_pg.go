package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stayvia/user-service/internal/domain"
)

const userColumns = `
    u.id, u.first_name, u.last_name, u.email, u.password_hash, u.birthday,
    u.phone_number, u.wallet_address, u.profile_picture, u.verification_code,
    u.verification_expiration, u.is_enabled, u.rating, u.score, u.created_at
`

type userRow struct {
	domain.User
	RoleNames pq.StringArray `db:"role_names"`
}

func (r userRow) toDomain() *domain.User {
	user := r.User
	user.Roles = make([]domain.Role, 0, len(r.RoleNames))
	for _, name := range r.RoleNames {
		user.Roles = append(user.Roles, domain.Role(name))
	}
	return &user
}

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	const query = `
        INSERT INTO user_account (
            first_name, last_name, email, password_hash, birthday, phone_number,
            wallet_address, verification_code, verification_expiration, is_enabled, score
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, first_name, last_name, email, password_hash, birthday,
                  phone_number, wallet_address, profile_picture, verification_code,
                  verification_expiration, is_enabled, rating, score, created_at
    `
	row := ext(ctx, r.db).QueryRowxContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.PasswordHash,
		user.Birthday, user.PhoneNumber, user.WalletAddress,
		user.VerificationCode, user.VerificationCodeExpiresAt,
		user.Enabled, user.Score,
	)
	var created domain.User
	if err := row.StructScan(&created); err != nil {
		return nil, err
	}
	if err := r.insertRoles(ctx, created.ID, user.Roles); err != nil {
		return nil, err
	}
	created.Roles = append([]domain.Role(nil), user.Roles...)
	return &created, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `,
               COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS role_names
        FROM user_account u
        LEFT JOIN user_role ur ON ur.user_id = u.id
        WHERE u.email = $1
        GROUP BY u.id
    `
	var row userRow
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, query, email); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `,
               COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS role_names
        FROM user_account u
        LEFT JOIN user_role ur ON ur.user_id = u.id
        WHERE u.id = $1
        GROUP BY u.id
    `
	var row userRow
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &row, query, id); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM user_account WHERE email = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, ext(ctx, r.db), &exists, query, email); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `,
               COALESCE(array_agg(ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS role_names
        FROM user_account u
        LEFT JOIN user_role ur ON ur.user_id = u.id
        GROUP BY u.id
        ORDER BY u.created_at
    `
	var rows []userRow
	if err := sqlx.SelectContext(ctx, ext(ctx, r.db), &rows, query); err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toDomain())
	}
	return users, nil
}

func (r *UserRepository) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	const query = `
        UPDATE user_account
        SET verification_code = $2,
            verification_expiration = $3
        WHERE id = $1
    `
	return r.execExpectingRow(ctx, query, id, code, expiresAt)
}

func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	const query = `
        UPDATE user_account
        SET is_enabled = TRUE,
            verification_code = NULL,
            verification_expiration = NULL
        WHERE id = $1
    `
	return r.execExpectingRow(ctx, query, id)
}

func (r *UserRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	const query = `UPDATE user_account SET is_enabled = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, enabled)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `UPDATE user_account SET password_hash = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, passwordHash)
}

func (r *UserRepository) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName *string) error {
	const query = `
        UPDATE user_account
        SET first_name = COALESCE($2, first_name),
            last_name = COALESCE($3, last_name)
        WHERE id = $1
    `
	return r.execExpectingRow(ctx, query, id, firstName, lastName)
}

func (r *UserRepository) UpdateBirthday(ctx context.Context, id uuid.UUID, birthday time.Time) error {
	const query = `UPDATE user_account SET birthday = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, birthday)
}

func (r *UserRepository) UpdateWallet(ctx context.Context, id uuid.UUID, walletAddress *string) error {
	const query = `UPDATE user_account SET wallet_address = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, walletAddress)
}

func (r *UserRepository) UpdateProfilePicture(ctx context.Context, id uuid.UUID, url *string) error {
	const query = `UPDATE user_account SET profile_picture = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, url)
}

func (r *UserRepository) ReplaceRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	const query = `DELETE FROM user_role WHERE user_id = $1`
	if _, err := ext(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return err
	}
	return r.insertRoles(ctx, id, roles)
}

func (r *UserRepository) insertRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	const query = `
        INSERT INTO user_role (user_id, role)
        VALUES ($1, $2)
        ON CONFLICT (user_id, role) DO NOTHING
    `
	for _, role := range roles {
		if _, err := ext(ctx, r.db).ExecContext(ctx, query, id, string(role)); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := ext(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
