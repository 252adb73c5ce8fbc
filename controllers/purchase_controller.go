// controllers/purchase_controller.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/middleware"
	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
	"github.com/redsponsor/redsponsor_backend/services"
)

type PurchaseController struct {
	store  repositories.Store
	engine *services.Engine
}

func NewPurchaseController(store repositories.Store, engine *services.Engine) *PurchaseController {
	return &PurchaseController{store: store, engine: engine}
}

// CreatePurchase registers a pending purchase for the authenticated member.
// Payment confirmation happens out of band; distribution only runs once an
// admin confirms.
func (pc *PurchaseController) CreatePurchase(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claims := middleware.GetUserFromToken(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "User ID not found in context",
		})
	}

	buyerID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	var req models.CreatePurchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
			Data:    err.Error(),
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid purchase data",
			Data:    err.Error(),
		})
	}

	// Duplicate deliveries of the same client request return the purchase
	// created the first time.
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else if existing, err := pc.store.PurchaseByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Purchase already registered",
			Data:    existing,
		})
	}

	purchase := models.Purchase{
		ID:             primitive.NewObjectID(),
		BuyerID:        buyerID,
		Value:          req.Value,
		Points:         req.Points,
		Type:           req.Type,
		Status:         models.PurchaseStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := pc.store.InsertPurchase(ctx, &purchase); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to register purchase",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Purchase registered successfully",
		Data:    purchase,
	})
}

// GetPendingPurchases lists purchases awaiting an admin decision.
func (pc *PurchaseController) GetPendingPurchases(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	purchases, err := pc.store.PendingPurchases(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch pending purchases",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Pending purchases fetched successfully",
		Data:    purchases,
	})
}

// ConfirmPurchase runs the distribution engine for a pending purchase. The
// response is success as soon as the buyer credit commits; commission totals
// in the summary reflect what the best-effort phase managed to pay.
func (pc *PurchaseController) ConfirmPurchase(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	claims := middleware.GetUserFromToken(c)
	if claims == nil || claims.UserType != "admin" {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only admins can access this endpoint",
		})
	}

	purchaseID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid purchase ID format",
		})
	}

	summary, err := pc.engine.Confirm(ctx, purchaseID, claims.UserID)
	if err != nil {
		return pc.processingError(c, err, "confirm")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Purchase confirmed successfully",
		Data:    summary,
	})
}

// RejectPurchase marks a pending purchase rejected. No account is mutated.
func (pc *PurchaseController) RejectPurchase(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claims := middleware.GetUserFromToken(c)
	if claims == nil || claims.UserType != "admin" {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only admins can access this endpoint",
		})
	}

	purchaseID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid purchase ID format",
		})
	}

	var req models.ProcessPurchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := pc.engine.Reject(ctx, purchaseID, claims.UserID, req.AdminNote); err != nil {
		return pc.processingError(c, err, "reject")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Purchase rejected successfully",
		Data: map[string]string{
			"purchaseId": purchaseID.Hex(),
			"status":     models.PurchaseStatusRejected,
		},
	})
}

// GetMyCommissions returns the authenticated account's commission records.
func (pc *PurchaseController) GetMyCommissions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claims := middleware.GetUserFromToken(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "User ID not found in context",
		})
	}

	accountID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	records, err := pc.store.CommissionsFor(ctx, accountID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch commissions",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commissions fetched successfully",
		Data:    records,
	})
}

// GetAuditLog returns recent audit events for reconciliation.
func (pc *PurchaseController) GetAuditLog(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := pc.store.RecentAudit(ctx, 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch audit log",
			Data:    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Audit log fetched successfully",
		Data:    events,
	})
}

func (pc *PurchaseController) processingError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, repositories.ErrPurchaseNotFound):
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Purchase not found",
		})
	case errors.Is(err, repositories.ErrAlreadyProcessed):
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Purchase is already processed",
		})
	case errors.Is(err, repositories.ErrAccountNotFound):
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Buyer account not found",
		})
	default:
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to " + action + " purchase",
			Data:    err.Error(),
		})
	}
}
