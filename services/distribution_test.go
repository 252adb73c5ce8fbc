package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/config"
	"github.com/redsponsor/redsponsor_backend/models"
	"github.com/redsponsor/redsponsor_backend/repositories"
	"github.com/redsponsor/redsponsor_backend/services"
)

func testPayoutConfig() config.PayoutConfig {
	return config.PayoutConfig{
		MaxChainDepth:    10,
		LevelPercents:    []float64{0.068, 0.068, 0.068, 0.068, 0.068},
		SponsorBonus:     500,
		PoolTotal:        13000,
		PoolLevels:       10,
		ActivationPoints: 100,
	}
}

func newTestEngine(store *repositories.MemoryStore) *services.Engine {
	return services.NewEngine(store, testPayoutConfig(), nil)
}

func seedBuyer(store *repositories.MemoryStore, sponsorHandle string) *models.Account {
	return store.SeedAccount(&models.Account{
		Handle:        "buyer",
		SponsorHandle: sponsorHandle,
	})
}

func seedPurchase(store *repositories.MemoryStore, buyer *models.Account, purchaseType string, value float64, points int) *models.Purchase {
	p := &models.Purchase{
		BuyerID:   buyer.ID,
		Value:     value,
		Points:    points,
		Type:      purchaseType,
		Status:    models.PurchaseStatusPending,
		CreatedAt: time.Now(),
	}
	if err := store.InsertPurchase(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

func accountByHandle(t *testing.T, store *repositories.MemoryStore, handle string) *models.Account {
	t.Helper()
	a, err := store.AccountByHandle(context.Background(), handle)
	require.NoError(t, err)
	return a
}

func TestConfirm_SignupDistributesPoolAndBonus(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 3)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)
	engine := newTestEngine(store)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	// Buyer recognition
	b, err := store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(5000), b.Balance)
	assert.Equal(t, 50, b.PersonalPoints)
	assert.False(t, b.InitialPackBought, "50 points is below the activation threshold")
	require.Len(t, b.ActivityLog, 1)
	assert.Equal(t, "purchase-confirmed", b.ActivityLog[0].Action)

	// Purchase state
	p, err := store.Purchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusConfirmed, p.Status)
	assert.True(t, p.InitialBonusPaid)

	// Pool split: 13000/10 = 1300 per resolved level
	assert.Equal(t, 3, summary.LevelsPaid)
	assert.Equal(t, float64(500), summary.PaidSponsor)
	assert.Equal(t, float64(3900), summary.PaidPoolTotal)
	assert.Equal(t, float64(9100), summary.PoolUnassigned)

	// Immediate sponsor gets bonus + share; the bonus lands on balance and
	// team points alike, on top of the level's point weight
	s1 := accountByHandle(t, store, "s1")
	assert.Equal(t, float64(1800), s1.Balance)
	assert.Equal(t, 550, s1.TeamPoints)
	s3 := accountByHandle(t, store, "s3")
	assert.Equal(t, float64(1300), s3.Balance)
	assert.Equal(t, 50, s3.TeamPoints)

	// One bonus record plus one level record per resolved ancestor
	records := store.AllCommissionRecords()
	var bonuses, levels int
	for _, rec := range records {
		switch rec.Reason {
		case models.ReasonSponsorBonus:
			bonuses++
		case models.ReasonLevelCommission:
			levels++
		}
	}
	assert.Equal(t, 1, bonuses)
	assert.Equal(t, 3, levels)
}

func TestConfirm_SignupWithoutAncestors(t *testing.T) {
	store := repositories.NewMemoryStore()
	buyer := seedBuyer(store, "")
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)
	engine := newTestEngine(store)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.LevelsPaid)
	assert.Equal(t, float64(0), summary.PaidSponsor)
	assert.Equal(t, float64(13000), summary.PoolUnassigned)
	assert.Empty(t, store.AllCommissionRecords())
}

func TestConfirm_RepeatPaysPercentageTable(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 7)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeRepeat, 1000, 10)
	engine := newTestEngine(store)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	// The walk is bounded by the table length, not the pool depth
	assert.Equal(t, 5, summary.LevelsPaid)
	assert.Equal(t, float64(0), summary.PaidSponsor, "no bonus on repeat purchases")
	assert.Equal(t, float64(340), summary.PaidPoolTotal)

	for _, handle := range []string{"s1", "s2", "s3", "s4", "s5"} {
		a := accountByHandle(t, store, handle)
		assert.Equal(t, float64(68), a.Balance, handle)
		assert.Equal(t, 10, a.TeamPoints, handle)
	}
	for _, handle := range []string{"s6", "s7"} {
		a := accountByHandle(t, store, handle)
		assert.Equal(t, float64(0), a.Balance, handle)
		assert.Equal(t, 0, a.TeamPoints, handle)
	}

	p, err := store.Purchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.False(t, p.InitialBonusPaid)
}

func TestConfirm_SponsorBonusCreditsBalanceAndTeamPoints(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 1)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)
	engine := newTestEngine(store)

	_, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	s1 := accountByHandle(t, store, "s1")
	assert.Equal(t, float64(500+1300), s1.Balance)
	assert.Equal(t, 500+50, s1.TeamPoints, "flat bonus counts toward team points on top of the level weight")

	var bonusEntries int
	for _, entry := range s1.ActivityLog {
		if entry.Action == models.ReasonSponsorBonus {
			bonusEntries++
			assert.Equal(t, float64(500), entry.Amount)
			assert.Equal(t, 500, entry.Points)
		}
	}
	assert.Equal(t, 1, bonusEntries)
}

func TestConfirm_SecondConfirmationIsANoOp(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 2)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)
	engine := newTestEngine(store)

	_, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	s1Before := accountByHandle(t, store, "s1").Balance
	buyerBefore, err := store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)

	_, err = engine.Confirm(context.Background(), purchase.ID, "admin-1")
	assert.ErrorIs(t, err, repositories.ErrAlreadyProcessed)

	assert.Equal(t, s1Before, accountByHandle(t, store, "s1").Balance)
	buyerAfter, err := store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, buyerBefore.Balance, buyerAfter.Balance)
	assert.Equal(t, buyerBefore.PersonalPoints, buyerAfter.PersonalPoints)
}

func TestConfirm_UnknownPurchase(t *testing.T) {
	store := repositories.NewMemoryStore()
	engine := newTestEngine(store)

	_, err := engine.Confirm(context.Background(), primitive.NewObjectID(), "admin-1")
	assert.ErrorIs(t, err, repositories.ErrPurchaseNotFound)
}

func TestConfirm_MissingBuyerLeavesPurchasePending(t *testing.T) {
	store := repositories.NewMemoryStore()
	purchase := &models.Purchase{
		BuyerID:   primitive.NewObjectID(),
		Value:     1000,
		Points:    10,
		Type:      models.PurchaseTypeSignup,
		Status:    models.PurchaseStatusPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.InsertPurchase(context.Background(), purchase))
	engine := newTestEngine(store)

	_, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	assert.ErrorIs(t, err, repositories.ErrAccountNotFound)

	// The transaction rolled back completely
	p, err := store.Purchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, p.Status)
}

func TestConfirm_ActivationFlagFlipsOnce(t *testing.T) {
	store := repositories.NewMemoryStore()
	buyer := store.SeedAccount(&models.Account{
		Handle:         "buyer",
		PersonalPoints: 60,
	})
	engine := newTestEngine(store)

	first := seedPurchase(store, buyer, models.PurchaseTypeSignup, 1000, 40)
	_, err := engine.Confirm(context.Background(), first.ID, "admin-1")
	require.NoError(t, err)

	b, err := store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, b.PersonalPoints)
	assert.True(t, b.InitialPackBought, "60+40 crosses the threshold")

	second := seedPurchase(store, buyer, models.PurchaseTypeRepeat, 1000, 40)
	_, err = engine.Confirm(context.Background(), second.ID, "admin-1")
	require.NoError(t, err)

	b, err = store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.True(t, b.InitialPackBought)
}

func TestConfirm_CycleStopsDistributionEarly(t *testing.T) {
	store := repositories.NewMemoryStore()
	store.SeedAccount(&models.Account{Handle: "a", SponsorHandle: "b"})
	store.SeedAccount(&models.Account{Handle: "b", SponsorHandle: "c"})
	store.SeedAccount(&models.Account{Handle: "c", SponsorHandle: "a"})
	buyer := seedBuyer(store, "a")
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)
	engine := newTestEngine(store)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	assert.True(t, summary.CycleDetected)
	assert.Equal(t, 3, summary.LevelsPaid)

	var cycleEvents int
	for _, ev := range store.AuditEvents() {
		if ev.Type == models.AuditSponsorCycle {
			cycleEvents++
		}
	}
	assert.Equal(t, 1, cycleEvents, "the corrupted graph is flagged for repair")
}

func TestConfirm_PreRecordedLevelIsNotPaidTwice(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 3)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeRepeat, 1000, 10)
	engine := newTestEngine(store)

	// Simulate an earlier partial run that already paid level 2
	s2 := accountByHandle(t, store, "s2")
	inserted, err := store.InsertCommissionRecord(context.Background(), &models.CommissionRecord{
		PurchaseID:  purchase.ID,
		RecipientID: s2.ID,
		Amount:      68,
		Reason:      models.ReasonLevelCommission,
		Level:       2,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	require.True(t, inserted)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.LevelsPaid)
	assert.Equal(t, float64(0), accountByHandle(t, store, "s2").Balance, "duplicate record key skips the credit")
	assert.Equal(t, float64(68), accountByHandle(t, store, "s1").Balance)
	assert.Equal(t, float64(68), accountByHandle(t, store, "s3").Balance)
}

func TestReject_OnlyFlipsStatus(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 2)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)
	engine := newTestEngine(store)

	require.NoError(t, engine.Reject(context.Background(), purchase.ID, "admin-1", "payment bounced"))

	p, err := store.Purchase(context.Background(), purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusRejected, p.Status)
	assert.Equal(t, "payment bounced", p.AdminNote)

	b, err := store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(0), b.Balance)
	assert.Equal(t, float64(0), accountByHandle(t, store, "s1").Balance)
	assert.Empty(t, store.AllCommissionRecords())

	// A rejected purchase cannot later be confirmed
	_, err = engine.Confirm(context.Background(), purchase.ID, "admin-1")
	assert.ErrorIs(t, err, repositories.ErrAlreadyProcessed)
}

// memoryMarkers is an in-process MarkerStore for engine tests.
type memoryMarkers struct {
	mu   sync.Mutex
	done map[string]bool
}

func newMemoryMarkers() *memoryMarkers {
	return &memoryMarkers{done: make(map[string]bool)}
}

func (m *memoryMarkers) Done(ctx context.Context, purchaseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[purchaseID], nil
}

func (m *memoryMarkers) MarkDone(ctx context.Context, purchaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[purchaseID] = true
	return nil
}

func TestConfirm_MarkerShortCircuitsCompletedDistribution(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 3)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeSignup, 5000, 50)

	markers := newMemoryMarkers()
	require.NoError(t, markers.MarkDone(context.Background(), purchase.ID.Hex()))
	engine := services.NewEngine(store, testPayoutConfig(), markers)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	// The critical credit still runs; only the secondary phase is skipped
	b, err := store.Account(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(5000), b.Balance)
	assert.Equal(t, 0, summary.LevelsPaid)
	assert.Equal(t, float64(0), summary.PaidSponsor)
	assert.Empty(t, store.AllCommissionRecords())
	assert.Equal(t, float64(0), accountByHandle(t, store, "s1").Balance)
}

func TestConfirm_MarkerWrittenOnlyAfterCompletion(t *testing.T) {
	store := repositories.NewMemoryStore()
	start := seedLineage(store, 3)
	buyer := seedBuyer(store, start)
	purchase := seedPurchase(store, buyer, models.PurchaseTypeRepeat, 1000, 10)

	// An earlier run that died mid-phase left a paid level but no marker
	s1 := accountByHandle(t, store, "s1")
	inserted, err := store.InsertCommissionRecord(context.Background(), &models.CommissionRecord{
		PurchaseID:  purchase.ID,
		RecipientID: s1.ID,
		Amount:      68,
		Reason:      models.ReasonLevelCommission,
		Level:       1,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	require.True(t, inserted)

	markers := newMemoryMarkers()
	engine := services.NewEngine(store, testPayoutConfig(), markers)

	summary, err := engine.Confirm(context.Background(), purchase.ID, "admin-1")
	require.NoError(t, err)

	// The re-drive completed the remaining levels without re-paying level 1
	assert.Equal(t, 2, summary.LevelsPaid)
	assert.Equal(t, float64(0), accountByHandle(t, store, "s1").Balance)
	assert.Equal(t, float64(68), accountByHandle(t, store, "s2").Balance)
	assert.Equal(t, float64(68), accountByHandle(t, store, "s3").Balance)

	done, err := markers.Done(context.Background(), purchase.ID.Hex())
	require.NoError(t, err)
	assert.True(t, done, "marker lands once the phase has run to completion")
}

func TestConfirm_ConcurrentPurchasesSharedAncestor(t *testing.T) {
	store := repositories.NewMemoryStore()
	store.SeedAccount(&models.Account{Handle: "shared"})
	b1 := store.SeedAccount(&models.Account{Handle: "b1", SponsorHandle: "shared"})
	b2 := store.SeedAccount(&models.Account{Handle: "b2", SponsorHandle: "shared"})
	p1 := seedPurchase(store, b1, models.PurchaseTypeSignup, 5000, 30)
	p2 := seedPurchase(store, b2, models.PurchaseTypeSignup, 5000, 20)
	engine := newTestEngine(store)

	var wg sync.WaitGroup
	for _, id := range []primitive.ObjectID{p1.ID, p2.ID} {
		wg.Add(1)
		go func(purchaseID primitive.ObjectID) {
			defer wg.Done()
			_, err := engine.Confirm(context.Background(), purchaseID, "admin-1")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	// Both bonuses and both pool shares landed, no lost update
	shared := accountByHandle(t, store, "shared")
	assert.Equal(t, float64(2*(500+1300)), shared.Balance)
	assert.Equal(t, 2*500+30+20, shared.TeamPoints)
	assert.Len(t, store.AllCommissionRecords(), 4)
}
