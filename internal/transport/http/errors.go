package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stayvia/user-service/internal/service"
	"github.com/stayvia/user-service/internal/util"
)

// statusForServiceError maps domain errors onto HTTP statuses. Consumed
// artifacts are conflicts, expired ones are gone, and credential failures stay
// 401 so clients can distinguish retryable input from a dead token.
func statusForServiceError(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrResetTokenNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrEmailAlreadyUsed),
		errors.Is(err, service.ErrAlreadyVerified),
		errors.Is(err, service.ErrResetTokenUsed):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrResetTokenExpired),
		errors.Is(err, service.ErrExpiredVerificationCode):
		return http.StatusGone, true
	case errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrAccountDisabled),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrUnderRequiredAge),
		errors.Is(err, service.ErrWrongVerificationCode),
		errors.Is(err, service.ErrResetTokenInvalid),
		errors.Is(err, service.ErrInvalidWalletAddress),
		errors.Is(err, service.ErrUnsupportedImage):
		return http.StatusBadRequest, true
	}
	return 0, false
}

func serviceError(c echo.Context, err error, fallback string) error {
	if status, ok := statusForServiceError(err); ok {
		return c.JSON(status, util.Error(err.Error()))
	}
	return c.JSON(http.StatusInternalServerError, util.Error(fallback))
}
