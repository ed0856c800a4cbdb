package domain

import (
	"time"

	"github.com/google/uuid"
)

// PasswordResetToken stores only the sha256 digest of the secret that was
// mailed out; the raw value never touches the database. Used and Valid are
// one-way flags: a consumed token flips Used, a superseded one loses Valid.
type PasswordResetToken struct {
	ID          int64     `db:"id" json:"id"`
	TokenDigest string    `db:"token_digest" json:"-"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Used        bool      `db:"is_used" json:"is_used"`
	Valid       bool      `db:"is_valid" json:"is_valid"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
