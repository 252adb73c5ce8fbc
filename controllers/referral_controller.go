// controllers/referral_controller.go
package controllers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/middleware"
	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
	"github.com/redsponsor/redsponsor_backend/utils"
)

type ReferralController struct {
	store repositories.Store
}

func NewReferralController(store repositories.Store) *ReferralController {
	return &ReferralController{store: store}
}

// IssueReferralCode issues the authenticated account's referral code.
// Issuance is idempotent: an account that already holds a code gets the same
// code back, never a replacement.
func (rc *ReferralController) IssueReferralCode(c echo.Context) error {
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

	account, err := rc.store.Account(ctx, accountID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Account not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}

	if account.ReferralCode != "" {
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Referral code already issued",
			Data:    map[string]string{"referralCode": account.ReferralCode},
		})
	}

	code, err := utils.GenerateMemberReferralCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate referral code",
		})
	}
	if err := rc.store.SetReferralCode(ctx, account.ID, code); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to save referral code",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Referral code issued",
		Data:    map[string]string{"referralCode": code},
	})
}

// GetReferralData returns the authenticated account's referral information:
// code, direct downline count, points and balance.
func (rc *ReferralController) GetReferralData(c echo.Context) error {
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

	account, err := rc.store.Account(ctx, accountID)
	if err != nil {
		if err == repositories.ErrAccountNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Account not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
			Data:    err.Error(),
		})
	}

	// Ensure referral code exists, generate if not
	if account.ReferralCode == "" {
		code, err := utils.GenerateMemberReferralCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to generate referral code",
			})
		}
		if err := rc.store.SetReferralCode(ctx, account.ID, code); err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to save referral code",
			})
		}
		account.ReferralCode = code
	}

	directReferrals, err := rc.store.DirectReferrals(ctx, account.Handle)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count referrals",
			Data:    err.Error(),
		})
	}

	baseURL := os.Getenv("APP_BASE_URL")
	if baseURL == "" {
		baseURL = "https://redsponsor.com"
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral data fetched successfully",
		Data: models.ReferralData{
			ReferralCode:    account.ReferralCode,
			DirectReferrals: directReferrals,
			PersonalPoints:  account.PersonalPoints,
			TeamPoints:      account.TeamPoints,
			Balance:         account.Balance,
			ReferralLink:    baseURL + "/register?ref=" + account.ReferralCode,
		},
	})
}
