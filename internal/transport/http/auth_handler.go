package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stayvia/user-service/internal/domain"
	"github.com/stayvia/user-service/internal/service"
	"github.com/stayvia/user-service/internal/util"
)

type AuthHandler struct {
	auth *service.AuthService
}

func RegisterAuth(e *echo.Echo, auth *service.AuthService) {
	handler := &AuthHandler{auth: auth}

	group := e.Group("/api/v1/auth")
	group.POST("/register", handler.register)
	group.POST("/login", handler.login)
	group.POST("/verify", handler.verify)
	group.POST("/resend-verification", handler.resendVerification)
	group.POST("/forgot-password", handler.forgotPassword)
	group.POST("/verify-reset-token", handler.verifyResetToken)
	group.POST("/reset-password", handler.resetPassword)
	group.POST("/verify-reset-code", handler.verifyResetCode)
	group.POST("/reset-password-with-code", handler.resetPasswordWithCode)
}

// register handles POST /api/v1/auth/register
func (h *AuthHandler) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}

	input, err := buildRegisterInput(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
	}

	user, err := h.auth.Register(c.Request().Context(), input)
	if err != nil {
		return serviceError(c, err, "unable to register user")
	}
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// login handles POST /api/v1/auth/login
func (h *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email and password required"))
	}

	result, err := h.auth.Login(c.Request().Context(), normalizeEmail(req.Email), req.Password)
	if err != nil {
		return serviceError(c, err, "unable to log in")
	}
	return c.JSON(http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn.Milliseconds(),
	})
}

// verify handles POST /api/v1/auth/verify
func (h *AuthHandler) verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email and verification code required"))
	}

	err := h.auth.VerifyUser(c.Request().Context(), normalizeEmail(req.Email), strings.TrimSpace(req.Code))
	if err != nil {
		return serviceError(c, err, "unable to verify user")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// resendVerification handles POST /api/v1/auth/resend-verification
func (h *AuthHandler) resendVerification(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email required"))
	}

	err := h.auth.ResendVerificationCode(c.Request().Context(), normalizeEmail(req.Email))
	if err != nil {
		return serviceError(c, err, "unable to resend verification code")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// forgotPassword handles POST /api/v1/auth/forgot-password
func (h *AuthHandler) forgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email required"))
	}

	err := h.auth.RequestPasswordReset(c.Request().Context(), normalizeEmail(req.Email))
	if err != nil {
		return serviceError(c, err, "unable to start password reset")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// verifyResetToken handles POST /api/v1/auth/verify-reset-token
func (h *AuthHandler) verifyResetToken(c echo.Context) error {
	var req ResetTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, util.Error("token required"))
	}

	err := h.auth.ValidateResetToken(c.Request().Context(), strings.TrimSpace(req.Token))
	if err != nil {
		return serviceError(c, err, "unable to validate reset token")
	}
	return c.JSON(http.StatusOK, util.Envelope{"valid": true})
}

// resetPassword handles POST /api/v1/auth/reset-password
func (h *AuthHandler) resetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Token) == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, util.Error("token and new password required"))
	}

	err := h.auth.ResetPasswordWithToken(c.Request().Context(), strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		return serviceError(c, err, "unable to reset password")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// verifyResetCode handles POST /api/v1/auth/verify-reset-code
func (h *AuthHandler) verifyResetCode(c echo.Context) error {
	var req ResetCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email and code required"))
	}

	err := h.auth.ValidateResetCode(c.Request().Context(), normalizeEmail(req.Email), strings.TrimSpace(req.Code))
	if err != nil {
		return serviceError(c, err, "unable to validate reset code")
	}
	return c.JSON(http.StatusOK, util.Envelope{"valid": true})
}

// resetPasswordWithCode handles POST /api/v1/auth/reset-password-with-code
func (h *AuthHandler) resetPasswordWithCode(c echo.Context) error {
	var req ResetPasswordWithCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, util.Error("email, code and new password required"))
	}

	err := h.auth.ResetPasswordWithCode(c.Request().Context(), normalizeEmail(req.Email), strings.TrimSpace(req.Code), req.NewPassword)
	if err != nil {
		return serviceError(c, err, "unable to reset password")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

func buildRegisterInput(req RegisterRequest) (service.RegisterInput, error) {
	input := service.RegisterInput{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     normalizeEmail(req.Email),
		Password:  req.Password,
	}
	if input.FirstName == "" || input.LastName == "" {
		return input, errors.New("first and last name required")
	}
	if input.Email == "" {
		return input, errors.New("email required")
	}
	if input.Password == "" {
		return input, errors.New("password required")
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return input, errors.New("phone number required")
	}
	phoneNumber, err := strconv.ParseInt(strings.TrimPrefix(phone, "+"), 10, 64)
	if err != nil {
		return input, errors.New("phone number must be numeric")
	}
	input.PhoneNumber = phoneNumber

	birthday, err := time.Parse(birthdayLayout, strings.TrimSpace(req.Birthday))
	if err != nil {
		return input, errors.New("birthday must be formatted as YYYY-MM-DD")
	}
	input.Birthday = birthday

	if req.Role != nil && strings.TrimSpace(*req.Role) != "" {
		role, ok := domain.ParseRole(strings.ToUpper(strings.TrimSpace(*req.Role)))
		if !ok {
			return input, errors.New("unknown role")
		}
		if role == domain.RoleAdmin {
			return input, errors.New("cannot self-register as admin")
		}
		input.Role = &role
	}
	return input, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
