// models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account model. Handle is the human-chosen name other members use when they
// declare this account as their sponsor; SponsorHandle is a weak back-reference
// and never changes once set.
type Account struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Handle            string             `json:"handle" bson:"handle"`
	Email             string             `json:"email,omitempty" bson:"email,omitempty"`
	FullName          string             `json:"fullName,omitempty" bson:"fullName,omitempty"`
	SponsorHandle     string             `json:"sponsorHandle,omitempty" bson:"sponsorHandle,omitempty"`
	ReferralCode      string             `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	Balance           float64            `json:"balance" bson:"balance"`
	PersonalPoints    int                `json:"personalPoints" bson:"personalPoints"`
	TeamPoints        int                `json:"teamPoints" bson:"teamPoints"`
	InitialPackBought bool               `json:"initialPackBought" bson:"initialPackBought"`
	ActivityLog       []ActivityEntry    `json:"activityLog,omitempty" bson:"activityLog,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ActivityEntry is one line of an account's append-only activity log.
type ActivityEntry struct {
	Action     string             `json:"action" bson:"action"`
	Amount     float64            `json:"amount" bson:"amount"`
	Points     int                `json:"points" bson:"points"`
	PurchaseID primitive.ObjectID `json:"purchaseId,omitempty" bson:"purchaseId,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// ReferralData provides information about an account's referrals
type ReferralData struct {
	ReferralCode    string  `json:"referralCode"`
	DirectReferrals int64   `json:"directReferrals"`
	PersonalPoints  int     `json:"personalPoints"`
	TeamPoints      int     `json:"teamPoints"`
	Balance         float64 `json:"balance"`
	ReferralLink    string  `json:"referralLink"`
}
