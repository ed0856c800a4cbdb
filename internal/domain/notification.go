package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationChannel string

const (
	ChannelWelcomeEmail             NotificationChannel = "WELCOME_EMAIL"
	ChannelAccountVerificationEmail NotificationChannel = "ACCOUNT_VERIFICATION_EMAIL"
	ChannelPasswordResetEmail       NotificationChannel = "PASSWORD_RESET_EMAIL"
)

// Notification is the payload published to the notification bus. Delivery is
// best-effort; producers never block credential operations on it.
type Notification struct {
	UserID    uuid.UUID           `json:"user_id"`
	Channel   NotificationChannel `json:"channel"`
	CreatedAt time.Time           `json:"created_at"`
	Message   map[string]any      `json:"message"`
}

// ProfileChange announces that identity-relevant fields of an account moved
// (wallet linkage, role set). Complete reports whether the profile now counts
// as complete.
type ProfileChange struct {
	UserID   uuid.UUID `json:"user_id"`
	Complete bool      `json:"complete"`
}
