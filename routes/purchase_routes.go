package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/redsponsor/redsponsor_backend/controllers"
	"github.com/redsponsor/redsponsor_backend/middleware"
)

// RegisterPurchaseRoutes sets up purchase intake, admin processing and
// commission/audit views
func RegisterPurchaseRoutes(e *echo.Echo, purchaseController *controllers.PurchaseController) {
	// Member endpoints
	r := e.Group("/api")
	r.Use(middleware.JWTMiddleware())
	r.POST("/purchases", purchaseController.CreatePurchase)
	r.GET("/commissions", purchaseController.GetMyCommissions)

	// Admin processing endpoints
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireUserType("admin"))
	admin.GET("/purchases/pending", purchaseController.GetPendingPurchases)
	admin.POST("/purchases/:id/confirm", purchaseController.ConfirmPurchase)
	admin.POST("/purchases/:id/reject", purchaseController.RejectPurchase)
	admin.GET("/audit", purchaseController.GetAuditLog)
}
