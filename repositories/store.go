// repositories/store.go
package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/models"
)

// Precondition errors. The distribution engine aborts without retrying when it
// sees one of these.
var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrAlreadyProcessed = errors.New("purchase already processed")
)

// Store is the persistence surface the distribution engine runs against. The
// Mongo implementation is the production store; the in-memory implementation
// backs the tests. Credit methods must be atomic per document so that
// concurrent distributions to a shared ancestor never lose updates.
type Store interface {
	// RunTransaction executes fn atomically; every store call made with the
	// context passed to fn is part of the same all-or-nothing transaction.
	RunTransaction(ctx context.Context, fn func(txCtx context.Context) error) error

	Purchase(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error)
	PurchaseByIdempotencyKey(ctx context.Context, key string) (*models.Purchase, error)
	PendingPurchases(ctx context.Context) ([]models.Purchase, error)
	InsertPurchase(ctx context.Context, p *models.Purchase) error
	// ConfirmPurchase and RejectPurchase only touch still-pending purchases
	// and report ErrAlreadyProcessed otherwise.
	ConfirmPurchase(ctx context.Context, id primitive.ObjectID, adminID string) error
	RejectPurchase(ctx context.Context, id primitive.ObjectID, adminID, note string) error
	MarkBonusPaid(ctx context.Context, purchaseID primitive.ObjectID) error

	Account(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	AccountByHandle(ctx context.Context, handle string) (*models.Account, error)
	DirectReferrals(ctx context.Context, handle string) (int64, error)
	SetReferralCode(ctx context.Context, id primitive.ObjectID, code string) error
	// CreditBuyer applies the buyer's own recognition for a confirmed
	// purchase: balance and personal points, the activity-log append and,
	// at most once, the activation flag.
	CreditBuyer(ctx context.Context, id primitive.ObjectID, amount float64, points int, activated bool, entry models.ActivityEntry) error
	// CreditAncestor is a single atomic increment of balance and team points
	// plus an activity-log append.
	CreditAncestor(ctx context.Context, id primitive.ObjectID, amount float64, teamPoints int, entry models.ActivityEntry) error

	// InsertCommissionRecord returns false with a nil error when the record's
	// purchase-scoped key already exists, meaning this credit was paid before.
	InsertCommissionRecord(ctx context.Context, rec *models.CommissionRecord) (bool, error)
	CommissionsFor(ctx context.Context, recipientID primitive.ObjectID) ([]models.CommissionRecord, error)

	AppendAudit(ctx context.Context, ev *models.AuditEvent) error
	RecentAudit(ctx context.Context, limit int64) ([]models.AuditEvent, error)

	AdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}
