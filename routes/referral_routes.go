package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/redsponsor/redsponsor_backend/controllers"
	"github.com/redsponsor/redsponsor_backend/middleware"
)

// RegisterReferralRoutes sets up the member referral routes
func RegisterReferralRoutes(e *echo.Echo, referralController *controllers.ReferralController) {
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())
	r.GET("/referral", referralController.GetReferralData)
	r.POST("/referral/code", referralController.IssueReferralCode)
}
