package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/redsponsor/redsponsor_backend/controllers"
)

// RegisterAuthRoutes sets up the public auth routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	e.POST("/api/admin/login", authController.AdminLogin)
}
