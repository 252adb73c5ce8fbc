// services/distribution.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/config"
	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
)

// maxTxAttempts bounds the critical-path retry loop; exhaustion is a hard
// failure needing manual intervention.
const maxTxAttempts = 3

// Engine turns one confirmed purchase into account credits and ledger records.
// The buyer credit is a single atomic transaction; everything after it is
// best-effort and must never undo or block what already committed.
type Engine struct {
	store    repositories.Store
	cfg      config.PayoutConfig
	walker   *ChainWalker
	recorder *Recorder
	markers  MarkerStore // optional, nil disables distribution markers
}

func NewEngine(store repositories.Store, cfg config.PayoutConfig, markers MarkerStore) *Engine {
	return &Engine{
		store:    store,
		cfg:      cfg,
		walker:   NewChainWalker(store),
		recorder: NewRecorder(store),
		markers:  markers,
	}
}

// modelFor selects the payout model by purchase type: signups split the fixed
// pool, repeat purchases pay the percentage table.
func (e *Engine) modelFor(purchaseType string) PayoutModel {
	if purchaseType == models.PurchaseTypeSignup {
		levels := e.cfg.PoolLevels
		if levels > e.cfg.MaxChainDepth {
			levels = e.cfg.MaxChainDepth
		}
		return FixedPoolModel{Total: e.cfg.PoolTotal, LevelCount: levels}
	}
	return PercentageModel{Table: e.cfg.LevelPercents}
}

// Confirm drives a pending purchase through confirmation: the atomic buyer
// credit first, then the best-effort sponsor bonus and per-level commissions.
// Once the transaction commits the confirmation stands, whatever happens to
// the secondary effects.
func (e *Engine) Confirm(ctx context.Context, purchaseID primitive.ObjectID, adminID string) (*models.DistributionSummary, error) {
	var purchase *models.Purchase
	var buyer *models.Account

	critical := func(txCtx context.Context) error {
		p, err := e.store.Purchase(txCtx, purchaseID)
		if err != nil {
			return err
		}
		if p.Status != models.PurchaseStatusPending {
			return repositories.ErrAlreadyProcessed
		}

		b, err := e.store.Account(txCtx, p.BuyerID)
		if err != nil {
			return err
		}

		if err := e.store.ConfirmPurchase(txCtx, p.ID, adminID); err != nil {
			return err
		}

		// The activation flag flips exactly once, when cumulative personal
		// points first reach the threshold.
		activated := !b.InitialPackBought &&
			b.PersonalPoints+p.Points >= e.cfg.ActivationPoints

		entry := models.ActivityEntry{
			Action:     "purchase-confirmed",
			Amount:     p.Value,
			Points:     p.Points,
			PurchaseID: p.ID,
			CreatedAt:  time.Now(),
		}
		if err := e.store.CreditBuyer(txCtx, b.ID, p.Value, p.Points, activated, entry); err != nil {
			return err
		}

		purchase, buyer = p, b
		return nil
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = e.store.RunTransaction(ctx, critical)
		if err == nil || isPrecondition(err) {
			break
		}
		log.Printf("Confirmation transaction attempt %d for purchase %s failed: %v",
			attempt, purchaseID.Hex(), err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return nil, err
	}

	summary := e.distribute(ctx, purchase, buyer, adminID)
	return summary, nil
}

// Reject flips a pending purchase to rejected. No account is touched.
func (e *Engine) Reject(ctx context.Context, purchaseID primitive.ObjectID, adminID, note string) error {
	err := e.store.RunTransaction(ctx, func(txCtx context.Context) error {
		p, err := e.store.Purchase(txCtx, purchaseID)
		if err != nil {
			return err
		}
		if p.Status != models.PurchaseStatusPending {
			return repositories.ErrAlreadyProcessed
		}
		return e.store.RejectPurchase(txCtx, purchaseID, adminID, note)
	})
	if err != nil {
		return err
	}

	e.recorder.Rejection(ctx, purchaseID, adminID, note)
	return nil
}

// distribute runs the secondary effects for a freshly confirmed purchase.
// Every step is logged-and-continued on failure: the purchase is confirmed
// and must stay confirmed.
func (e *Engine) distribute(ctx context.Context, p *models.Purchase, buyer *models.Account, adminID string) *models.DistributionSummary {
	summary := &models.DistributionSummary{
		PurchaseID: p.ID,
		Status:     models.PurchaseStatusConfirmed,
	}

	// A marker short-circuits a secondary phase that already ran to
	// completion for this purchase. Without Redis the commission-record
	// index still stops duplicate credits level by level.
	if e.distributionDone(ctx, p.ID) {
		log.Printf("Distribution for purchase %s already completed, skipping secondary effects", p.ID.Hex())
		return summary
	}

	model := e.modelFor(p.Type)
	pool, isPool := model.(FixedPoolModel)
	if isPool {
		summary.PoolUnassigned = pool.Total
	}

	chain, cycle := e.walkChain(ctx, p, buyer, model.Levels())
	summary.CycleDetected = cycle

	if p.Type == models.PurchaseTypeSignup && len(chain) > 0 {
		summary.PaidSponsor = e.paySponsorBonus(ctx, p, chain[0].Account)
	}

	for _, level := range chain {
		amount := CommissionFor(p.Value, level.Depth, model)
		if amount <= 0 {
			continue
		}
		if !e.payLevel(ctx, p, level, amount) {
			continue
		}
		summary.LevelsPaid++
		summary.PaidPoolTotal += amount
	}

	if isPool {
		// Unassigned is measured against resolved ancestors: a short chain
		// leaves part of the pool unpaid, and that shortfall is reported,
		// never redistributed.
		summary.PoolUnassigned = pool.Unassigned(len(chain))
	}

	e.recorder.Confirmation(ctx, p.ID, adminID, summary.LevelsPaid, summary.PoolUnassigned)

	// The marker is written only after every step has been attempted; an
	// interrupted phase leaves no marker and stays re-drivable.
	e.markDistributionDone(ctx, p.ID)
	return summary
}

// walkChain materializes the ancestor chain and flags cycles for repair.
func (e *Engine) walkChain(ctx context.Context, p *models.Purchase, buyer *models.Account, maxDepth int) ([]ChainLevel, bool) {
	if buyer.SponsorHandle == "" {
		return nil, false
	}
	chain, cycle := e.walker.Walk(ctx, buyer.SponsorHandle, maxDepth)
	if cycle {
		log.Printf("Sponsor cycle above account %s, stopping distribution for purchase %s at level %d",
			buyer.Handle, p.ID.Hex(), len(chain))
		e.recorder.Cycle(ctx, p.ID, buyer.SponsorHandle)
	}
	return chain, cycle
}

// paySponsorBonus pays the one-time flat bonus to the immediate sponsor of a
// signup purchase. The purchase's own flag plus the commission-record key keep
// it at most once; a credit that lands without its flag is accepted rather
// than risking a blocked confirmation.
func (e *Engine) paySponsorBonus(ctx context.Context, p *models.Purchase, sponsor *models.Account) float64 {
	if p.InitialBonusPaid || e.cfg.SponsorBonus <= 0 {
		return 0
	}

	inserted, err := e.recorder.Commission(ctx, p.ID, sponsor.ID, e.cfg.SponsorBonus, models.ReasonSponsorBonus, 1)
	if err != nil {
		log.Printf("Failed to record sponsor bonus for purchase %s: %v", p.ID.Hex(), err)
	} else if !inserted {
		log.Printf("Sponsor bonus for purchase %s already paid, skipping", p.ID.Hex())
		return 0
	}

	// The flat bonus lands on both balance and team points; the purchase's
	// point weight reaches the sponsor separately through the level loop.
	bonusPoints := int(e.cfg.SponsorBonus)
	entry := models.ActivityEntry{
		Action:     models.ReasonSponsorBonus,
		Amount:     e.cfg.SponsorBonus,
		Points:     bonusPoints,
		PurchaseID: p.ID,
		CreatedAt:  time.Now(),
	}
	if err := e.store.CreditAncestor(ctx, sponsor.ID, e.cfg.SponsorBonus, bonusPoints, entry); err != nil {
		log.Printf("Failed to credit sponsor bonus to %s for purchase %s: %v",
			sponsor.Handle, p.ID.Hex(), err)
		return 0
	}

	if err := e.store.MarkBonusPaid(ctx, p.ID); err != nil {
		log.Printf("Failed to mark bonus paid on purchase %s: %v", p.ID.Hex(), err)
	}
	return e.cfg.SponsorBonus
}

// payLevel records then credits one ancestor's commission. A duplicate record
// means an earlier run already paid this level; a record write error pays
// anyway, trading a reconcilable ledger gap for never withholding payment.
func (e *Engine) payLevel(ctx context.Context, p *models.Purchase, level ChainLevel, amount float64) bool {
	inserted, err := e.recorder.Commission(ctx, p.ID, level.Account.ID, amount, models.ReasonLevelCommission, level.Depth)
	if err != nil {
		log.Printf("Failed to record level %d commission for purchase %s: %v",
			level.Depth, p.ID.Hex(), err)
	} else if !inserted {
		log.Printf("Level %d commission for purchase %s already paid, skipping", level.Depth, p.ID.Hex())
		return false
	}

	entry := models.ActivityEntry{
		Action:     models.ReasonLevelCommission,
		Amount:     amount,
		Points:     p.Points,
		PurchaseID: p.ID,
		CreatedAt:  time.Now(),
	}
	if err := e.store.CreditAncestor(ctx, level.Account.ID, amount, p.Points, entry); err != nil {
		log.Printf("Failed to credit level %d commission to %s for purchase %s: %v",
			level.Depth, level.Account.Handle, p.ID.Hex(), err)
		return false
	}
	return true
}

// distributionDone checks the per-purchase completion marker. Marker errors
// and a missing marker store both allow distribution to proceed.
func (e *Engine) distributionDone(ctx context.Context, purchaseID primitive.ObjectID) bool {
	if e.markers == nil {
		return false
	}
	done, err := e.markers.Done(ctx, purchaseID.Hex())
	if err != nil {
		log.Printf("Distribution marker for purchase %s unavailable: %v", purchaseID.Hex(), err)
		return false
	}
	return done
}

func (e *Engine) markDistributionDone(ctx context.Context, purchaseID primitive.ObjectID) {
	if e.markers == nil {
		return
	}
	if err := e.markers.MarkDone(ctx, purchaseID.Hex()); err != nil {
		log.Printf("Failed to set distribution marker for purchase %s: %v", purchaseID.Hex(), err)
	}
}

// isPrecondition reports whether err is a state check that retrying cannot
// change.
func isPrecondition(err error) bool {
	return errors.Is(err, repositories.ErrPurchaseNotFound) ||
		errors.Is(err, repositories.ErrAccountNotFound) ||
		errors.Is(err, repositories.ErrAlreadyProcessed)
}
