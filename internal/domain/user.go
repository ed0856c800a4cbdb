package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultScore is assigned to every freshly registered account.
const DefaultScore = 100

type User struct {
	ID                        uuid.UUID  `db:"id" json:"id"`
	FirstName                 string     `db:"first_name" json:"first_name"`
	LastName                  string     `db:"last_name" json:"last_name"`
	Email                     string     `db:"email" json:"email"`
	PasswordHash              string     `db:"password_hash" json:"-"`
	Birthday                  time.Time  `db:"birthday" json:"birthday"`
	PhoneNumber               int64      `db:"phone_number" json:"phone_number"`
	WalletAddress             *string    `db:"wallet_address" json:"wallet_address,omitempty"`
	ProfilePicture            *string    `db:"profile_picture" json:"profile_picture,omitempty"`
	VerificationCode          *string    `db:"verification_code" json:"-"`
	VerificationCodeExpiresAt *time.Time `db:"verification_expiration" json:"-"`
	Enabled                   bool       `db:"is_enabled" json:"is_enabled"`
	Rating                    *float64   `db:"rating" json:"rating,omitempty"`
	Score                     int        `db:"score" json:"score"`
	CreatedAt                 time.Time  `db:"created_at" json:"created_at"`
	Roles                     []Role     `db:"-" json:"roles,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
