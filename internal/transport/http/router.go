package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewRouter builds the echo instance shared by all handler groups. CORS is
// terminated at the API gateway, so the router carries only recovery, secure
// headers, and request logging.
func NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	registerLogging(e)

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	})
	return e
}
