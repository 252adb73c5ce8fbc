// models/commission.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commission reasons
const (
	ReasonSponsorBonus    = "sponsor-bonus"
	ReasonLevelCommission = "level-commission"
)

// CommissionRecord is the write-once audit record of a single credit. It is not
// the source of truth for balances, but the unique
// (purchaseId, recipientId, reason, level) index doubles as the duplicate-payment
// guard when a distribution is re-driven.
type CommissionRecord struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	PurchaseID  primitive.ObjectID `json:"purchaseId" bson:"purchaseId"`
	RecipientID primitive.ObjectID `json:"recipientId" bson:"recipientId"`
	Amount      float64            `json:"amount" bson:"amount"`
	Reason      string             `json:"reason" bson:"reason"`
	Level       int                `json:"level" bson:"level"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

// Audit event types
const (
	AuditPurchaseConfirmed = "purchase-confirmed"
	AuditPurchaseRejected  = "purchase-rejected"
	AuditSponsorCycle      = "sponsor-cycle"
)

// AuditEvent is an append-only reconciliation record. Writing one must never
// block or roll back the financial state it describes.
type AuditEvent struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Type           string             `json:"type" bson:"type"`
	PurchaseID     primitive.ObjectID `json:"purchaseId,omitempty" bson:"purchaseId,omitempty"`
	AdminID        string             `json:"adminId,omitempty" bson:"adminId,omitempty"`
	Detail         string             `json:"detail,omitempty" bson:"detail,omitempty"`
	LevelsPaid     int                `json:"levelsPaid,omitempty" bson:"levelsPaid,omitempty"`
	PoolUnassigned float64            `json:"poolUnassigned,omitempty" bson:"poolUnassigned,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
}

// DistributionSummary reports what one confirmation actually paid out.
type DistributionSummary struct {
	PurchaseID     primitive.ObjectID `json:"purchaseId"`
	Status         string             `json:"status"`
	LevelsPaid     int                `json:"levelsPaid"`
	PaidSponsor    float64            `json:"paidSponsor"`
	PaidPoolTotal  float64            `json:"paidPoolTotal"`
	PoolUnassigned float64            `json:"poolUnassigned"`
	CycleDetected  bool               `json:"cycleDetected,omitempty"`
}
