package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailAlreadyUsed = errors.New("a user with this email already exists")
	ErrUnderRequiredAge = errors.New("user must be at least 18 years old")
	ErrAccountDisabled  = errors.New("account disabled")
	ErrWrongPassword    = errors.New("wrong password")

	ErrAlreadyVerified         = errors.New("user is already verified")
	ErrWrongVerificationCode   = errors.New("wrong verification code")
	ErrExpiredVerificationCode = errors.New("expired verification code")

	ErrResetTokenNotFound = errors.New("reset token not found")
	ErrResetTokenExpired  = errors.New("reset token expired")
	ErrResetTokenInvalid  = errors.New("reset token invalid")
	ErrResetTokenUsed     = errors.New("reset token already used")

	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidWalletAddress = errors.New("wallet address must be a valid Ethereum address (0x followed by 40 hex characters)")
)
