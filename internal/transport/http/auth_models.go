package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/stayvia/user-service/internal/domain"
)

// birthdayLayout is the wire format for date-only fields.
const birthdayLayout = "2006-01-02"

// RegisterRequest carries the signup payload. PhoneNumber arrives as a string
// so clients can keep leading zeros and country prefixes out of JSON number
// pitfalls.
type RegisterRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	PhoneNumber string  `json:"phone_number"`
	Birthday    string  `json:"birthday"`
	Role        *string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by endpoints that issue JWT tokens. ExpiresIn is
// in milliseconds.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"verification_code"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetTokenRequest struct {
	Token string `json:"token"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetPasswordWithCodeRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UpdateProfileRequest struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Birthday      *string `json:"birthday,omitempty"`
	WalletAddress *string `json:"wallet_address,omitempty"`
}

// UserResponse is the full account representation returned to the owner and
// to admins.
type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PhoneNumber    int64     `json:"phone_number"`
	Birthday       string    `json:"birthday"`
	WalletAddress  *string   `json:"wallet_address,omitempty"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	Enabled        bool      `json:"enabled"`
	Rating         *float64  `json:"rating,omitempty"`
	Score          int       `json:"score"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublicUserResponse is the reduced representation exposed to other accounts.
type PublicUserResponse struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	Rating         *float64  `json:"rating,omitempty"`
	Score          int       `json:"score"`
	Roles          []string  `json:"roles"`
}

// UserStatsResponse carries the reputation numbers shown on profiles.
type UserStatsResponse struct {
	ID     uuid.UUID `json:"id"`
	Rating *float64  `json:"rating,omitempty"`
	Score  int       `json:"score"`
}

func roleNames(roles []domain.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return names
}

func toUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Email:          user.Email,
		PhoneNumber:    user.PhoneNumber,
		Birthday:       user.Birthday.Format(birthdayLayout),
		WalletAddress:  user.WalletAddress,
		ProfilePicture: user.ProfilePicture,
		Enabled:        user.Enabled,
		Rating:         user.Rating,
		Score:          user.Score,
		Roles:          roleNames(user.Roles),
		CreatedAt:      user.CreatedAt,
	}
}

func toPublicUserResponse(user *domain.User) PublicUserResponse {
	return PublicUserResponse{
		ID:             user.ID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		ProfilePicture: user.ProfilePicture,
		Rating:         user.Rating,
		Score:          user.Score,
		Roles:          roleNames(user.Roles),
	}
}
