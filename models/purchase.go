// models/purchase.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Purchase status values. A purchase is created pending and reaches exactly one
// terminal status; the pending check inside the confirmation transaction is what
// makes re-confirmation a no-op.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusConfirmed = "confirmed"
	PurchaseStatusRejected  = "rejected"
)

// Purchase types. Signup purchases pay the fixed pool plus the one-time sponsor
// bonus; repeat purchases pay the percentage table.
const (
	PurchaseTypeSignup = "signup"
	PurchaseTypeRepeat = "repeat"
)

type Purchase struct {
	ID               primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	BuyerID          primitive.ObjectID `json:"buyerId" bson:"buyerId"`
	Value            float64            `json:"value" bson:"value"`
	Points           int                `json:"points" bson:"points"`
	Type             string             `json:"type" bson:"type"`
	Status           string             `json:"status" bson:"status"`
	InitialBonusPaid bool               `json:"initialBonusPaid" bson:"initialBonusPaid"`
	IdempotencyKey   string             `json:"idempotencyKey,omitempty" bson:"idempotencyKey,omitempty"`
	AdminID          string             `json:"adminId,omitempty" bson:"adminId,omitempty"`
	AdminNote        string             `json:"adminNote,omitempty" bson:"adminNote,omitempty"`
	ProcessedAt      *time.Time         `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
}

type CreatePurchaseRequest struct {
	Value          float64 `json:"value" validate:"required,gt=0"`
	Points         int     `json:"points" validate:"gte=0"`
	Type           string  `json:"type" validate:"required,oneof=signup repeat"`
	IdempotencyKey string  `json:"idempotencyKey,omitempty"`
}

type ProcessPurchaseRequest struct {
	AdminNote string `json:"adminNote,omitempty"`
}
