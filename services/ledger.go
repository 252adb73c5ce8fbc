// services/ledger.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
)

// Recorder appends audit and commission records. Audit failures are logged and
// swallowed: the financial state they describe is already committed and must
// stay committed.
type Recorder struct {
	store repositories.Store
}

func NewRecorder(store repositories.Store) *Recorder {
	return &Recorder{store: store}
}

// Commission writes the record for one credit. It reports false when the
// purchase-scoped key already exists, which means this exact credit was paid
// on an earlier run.
func (r *Recorder) Commission(ctx context.Context, purchaseID, recipientID primitive.ObjectID, amount float64, reason string, level int) (bool, error) {
	rec := models.CommissionRecord{
		PurchaseID:  purchaseID,
		RecipientID: recipientID,
		Amount:      amount,
		Reason:      reason,
		Level:       level,
		CreatedAt:   time.Now(),
	}
	return r.store.InsertCommissionRecord(ctx, &rec)
}

// Confirmation records a completed confirmation with its payout totals.
func (r *Recorder) Confirmation(ctx context.Context, purchaseID primitive.ObjectID, adminID string, levelsPaid int, poolUnassigned float64) {
	ev := models.AuditEvent{
		Type:           models.AuditPurchaseConfirmed,
		PurchaseID:     purchaseID,
		AdminID:        adminID,
		LevelsPaid:     levelsPaid,
		PoolUnassigned: poolUnassigned,
		CreatedAt:      time.Now(),
	}
	if err := r.store.AppendAudit(ctx, &ev); err != nil {
		log.Printf("Failed to write confirmation audit for purchase %s: %v", purchaseID.Hex(), err)
	}
}

// Rejection records an admin rejection.
func (r *Recorder) Rejection(ctx context.Context, purchaseID primitive.ObjectID, adminID, note string) {
	ev := models.AuditEvent{
		Type:       models.AuditPurchaseRejected,
		PurchaseID: purchaseID,
		AdminID:    adminID,
		Detail:     note,
		CreatedAt:  time.Now(),
	}
	if err := r.store.AppendAudit(ctx, &ev); err != nil {
		log.Printf("Failed to write rejection audit for purchase %s: %v", purchaseID.Hex(), err)
	}
}

// Cycle flags a corrupted sponsor graph for manual repair. Distribution has
// already stopped at the repeated handle by the time this is written.
func (r *Recorder) Cycle(ctx context.Context, purchaseID primitive.ObjectID, handle string) {
	ev := models.AuditEvent{
		Type:       models.AuditSponsorCycle,
		PurchaseID: purchaseID,
		Detail:     fmt.Sprintf("sponsor cycle detected walking up from %s", handle),
		CreatedAt:  time.Now(),
	}
	if err := r.store.AppendAudit(ctx, &ev); err != nil {
		log.Printf("Failed to write cycle audit for purchase %s: %v", purchaseID.Hex(), err)
	}
}
