package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stayvia/user-service/internal/media"
	"github.com/stayvia/user-service/internal/service"
	"github.com/stayvia/user-service/internal/util"
)

const maxAvatarUploadBytes = 16 << 20

type UserHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	images *service.UserImageService
}

func RegisterUsers(e *echo.Echo, auth *service.AuthService, users *service.UserService, images *service.UserImageService) {
	handler := &UserHandler{auth: auth, users: users, images: images}

	public := e.Group("/api/v1/users")
	public.GET("/:id", handler.publicProfile)
	public.GET("/:id/stats", handler.stats)

	me := e.Group("/api/v1/users/me", RequireAuth(auth))
	me.GET("", handler.me)
	me.PUT("", handler.updateProfile)
	me.POST("/change-password", handler.changePassword)
	me.PUT("/profile-picture", handler.uploadProfilePicture)
	me.DELETE("/profile-picture", handler.deleteProfilePicture)
	me.POST("/become-host", handler.becomeHost)

	admin := e.Group("/api/v1/users/admin", RequireAuth(auth), RequireAdmin())
	admin.GET("/all", handler.listAll)
	admin.PUT("/:id/enable", handler.adminAction(users.EnableUser))
	admin.PUT("/:id/disable", handler.adminAction(users.DisableUser))
	admin.PUT("/:id/add-admin-role", handler.adminAction(users.AddAdminRole))
	admin.PUT("/:id/remove-admin-role", handler.adminAction(users.RemoveAdminRole))
	admin.PUT("/:id/add-host-role", handler.adminAction(users.AddHostRole))
	admin.PUT("/:id/remove-host-role", handler.adminAction(users.RemoveHostRole))
}

// me handles GET /api/v1/users/me
func (h *UserHandler) me(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// publicProfile handles GET /api/v1/users/{id}
func (h *UserHandler) publicProfile(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid user id"))
	}

	user, err := h.users.FindByID(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err, "unable to load user")
	}
	return c.JSON(http.StatusOK, toPublicUserResponse(user))
}

// stats handles GET /api/v1/users/{id}/stats
func (h *UserHandler) stats(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid user id"))
	}

	user, err := h.users.FindByID(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err, "unable to load user")
	}
	return c.JSON(http.StatusOK, UserStatsResponse{
		ID:     user.ID,
		Rating: user.Rating,
		Score:  user.Score,
	})
}

// updateProfile handles PUT /api/v1/users/me
func (h *UserHandler) updateProfile(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}

	input := service.UpdateProfileInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		WalletAddress: req.WalletAddress,
	}
	if req.Birthday != nil {
		birthday, err := time.Parse(birthdayLayout, strings.TrimSpace(*req.Birthday))
		if err != nil {
			return c.JSON(http.StatusBadRequest, util.Error("birthday must be formatted as YYYY-MM-DD"))
		}
		input.Birthday = &birthday
	}

	if err := h.users.UpdateProfile(c.Request().Context(), user.ID, input); err != nil {
		return serviceError(c, err, "unable to update profile")
	}

	updated, err := h.users.FindByID(c.Request().Context(), user.ID)
	if err != nil {
		return serviceError(c, err, "unable to load user")
	}
	return c.JSON(http.StatusOK, toUserResponse(updated))
}

// changePassword handles POST /api/v1/users/me/change-password
func (h *UserHandler) changePassword(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, util.Error("current and new password required"))
	}

	err := h.auth.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		return serviceError(c, err, "unable to change password")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// uploadProfilePicture handles PUT /api/v1/users/me/profile-picture
func (h *UserHandler) uploadProfilePicture(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	if err := c.Request().ParseMultipartForm(maxAvatarUploadBytes); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid multipart payload"))
	}
	header, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("image file required"))
	}

	file, err := header.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("unable to read image"))
	}
	defer file.Close()

	url, err := h.images.UploadProfilePicture(c.Request().Context(), user.ID, media.Upload{
		Reader:      file,
		Size:        header.Size,
		FileName:    header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
	})
	if err != nil {
		return serviceError(c, err, "unable to store profile picture")
	}
	return c.JSON(http.StatusOK, util.Data("profile_picture", url))
}

// deleteProfilePicture handles DELETE /api/v1/users/me/profile-picture
func (h *UserHandler) deleteProfilePicture(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	if err := h.images.DeleteProfilePicture(c.Request().Context(), user.ID); err != nil {
		return serviceError(c, err, "unable to delete profile picture")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// becomeHost handles POST /api/v1/users/me/become-host
func (h *UserHandler) becomeHost(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	if err := h.users.BecomeHost(c.Request().Context(), user.ID); err != nil {
		return serviceError(c, err, "unable to change role")
	}
	return c.JSON(http.StatusOK, util.Envelope{"success": true})
}

// listAll handles GET /api/v1/users/admin/all
func (h *UserHandler) listAll(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return serviceError(c, err, "unable to list users")
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, toUserResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, util.Data("users", responses))
}

// adminAction wraps the per-account admin mutations that share the same
// request and response shape.
func (h *UserHandler) adminAction(action func(ctx context.Context, id uuid.UUID) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, util.Error("invalid user id"))
		}
		if err := action(c.Request().Context(), id); err != nil {
			return serviceError(c, err, "unable to update user")
		}
		return c.JSON(http.StatusOK, util.Envelope{"success": true})
	}
}
