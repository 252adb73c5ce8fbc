// repositories/memory_store.go
package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/redsponsor/redsponsor_backend/models"
)

type memTxKey struct{}

// MemoryStore is an in-memory Store with the same semantics as the Mongo
// implementation: per-document credits are atomic, transactions are
// all-or-nothing. It exists so the distribution engine can be exercised
// without a database.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	handles  map[string]string // handle -> account id hex
	purchase map[string]*models.Purchase
	idemKeys map[string]string // idempotency key -> purchase id hex
	records  []models.CommissionRecord
	audit    []models.AuditEvent
	admins   map[string]*models.Admin // keyed by email
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*models.Account),
		handles:  make(map[string]string),
		purchase: make(map[string]*models.Purchase),
		idemKeys: make(map[string]string),
		admins:   make(map[string]*models.Admin),
	}
}

// lock acquires the store mutex unless the context belongs to a transaction
// that already holds it.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memSnapshot struct {
	accounts map[string]*models.Account
	handles  map[string]string
	purchase map[string]*models.Purchase
	idemKeys map[string]string
	records  []models.CommissionRecord
	audit    []models.AuditEvent
}

func (s *MemoryStore) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts: make(map[string]*models.Account, len(s.accounts)),
		handles:  make(map[string]string, len(s.handles)),
		purchase: make(map[string]*models.Purchase, len(s.purchase)),
		idemKeys: make(map[string]string, len(s.idemKeys)),
		records:  s.records,
		audit:    s.audit,
	}
	for k, a := range s.accounts {
		snap.accounts[k] = copyAccount(a)
	}
	for k, v := range s.handles {
		snap.handles[k] = v
	}
	for k, p := range s.purchase {
		cp := *p
		snap.purchase[k] = &cp
	}
	for k, v := range s.idemKeys {
		snap.idemKeys[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.accounts = snap.accounts
	s.handles = snap.handles
	s.purchase = snap.purchase
	s.idemKeys = snap.idemKeys
	s.records = snap.records
	s.audit = snap.audit
}

func copyAccount(a *models.Account) *models.Account {
	cp := *a
	cp.ActivityLog = append([]models.ActivityEntry(nil), a.ActivityLog...)
	return &cp
}

// RunTransaction serializes the callback behind the store mutex and rolls the
// whole state back if it fails.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// SeedAccount inserts an account, wiring the handle lookup. Test helper.
func (s *MemoryStore) SeedAccount(a *models.Account) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	cp := copyAccount(a)
	s.accounts[a.ID.Hex()] = cp
	if a.Handle != "" {
		s.handles[a.Handle] = a.ID.Hex()
	}
	return copyAccount(cp)
}

// SeedAdmin inserts an admin account. Test helper.
func (s *MemoryStore) SeedAdmin(a *models.Admin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	s.admins[a.Email] = a
}

func (s *MemoryStore) Purchase(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error) {
	defer s.lock(ctx)()
	p, ok := s.purchase[id.Hex()]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PurchaseByIdempotencyKey(ctx context.Context, key string) (*models.Purchase, error) {
	defer s.lock(ctx)()
	id, ok := s.idemKeys[key]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	cp := *s.purchase[id]
	return &cp, nil
}

func (s *MemoryStore) PendingPurchases(ctx context.Context) ([]models.Purchase, error) {
	defer s.lock(ctx)()
	var pending []models.Purchase
	for _, p := range s.purchase {
		if p.Status == models.PurchaseStatusPending {
			pending = append(pending, *p)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *MemoryStore) InsertPurchase(ctx context.Context, p *models.Purchase) error {
	defer s.lock(ctx)()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	s.purchase[p.ID.Hex()] = &cp
	if p.IdempotencyKey != "" {
		s.idemKeys[p.IdempotencyKey] = p.ID.Hex()
	}
	return nil
}

func (s *MemoryStore) ConfirmPurchase(ctx context.Context, id primitive.ObjectID, adminID string) error {
	return s.closePurchase(ctx, id, models.PurchaseStatusConfirmed, adminID, "")
}

func (s *MemoryStore) RejectPurchase(ctx context.Context, id primitive.ObjectID, adminID, note string) error {
	return s.closePurchase(ctx, id, models.PurchaseStatusRejected, adminID, note)
}

func (s *MemoryStore) closePurchase(ctx context.Context, id primitive.ObjectID, status, adminID, note string) error {
	defer s.lock(ctx)()
	p, ok := s.purchase[id.Hex()]
	if !ok {
		return ErrPurchaseNotFound
	}
	if p.Status != models.PurchaseStatusPending {
		return ErrAlreadyProcessed
	}
	now := time.Now()
	p.Status = status
	p.AdminID = adminID
	p.ProcessedAt = &now
	if note != "" {
		p.AdminNote = note
	}
	return nil
}

func (s *MemoryStore) MarkBonusPaid(ctx context.Context, purchaseID primitive.ObjectID) error {
	defer s.lock(ctx)()
	p, ok := s.purchase[purchaseID.Hex()]
	if !ok {
		return ErrPurchaseNotFound
	}
	p.InitialBonusPaid = true
	return nil
}

func (s *MemoryStore) Account(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	defer s.lock(ctx)()
	a, ok := s.accounts[id.Hex()]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *MemoryStore) AccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	defer s.lock(ctx)()
	id, ok := s.handles[handle]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(s.accounts[id]), nil
}

func (s *MemoryStore) DirectReferrals(ctx context.Context, handle string) (int64, error) {
	defer s.lock(ctx)()
	var n int64
	for _, a := range s.accounts {
		if a.SponsorHandle == handle {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SetReferralCode(ctx context.Context, id primitive.ObjectID, code string) error {
	defer s.lock(ctx)()
	a, ok := s.accounts[id.Hex()]
	if !ok {
		return ErrAccountNotFound
	}
	a.ReferralCode = code
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CreditBuyer(ctx context.Context, id primitive.ObjectID, amount float64, points int, activated bool, entry models.ActivityEntry) error {
	defer s.lock(ctx)()
	a, ok := s.accounts[id.Hex()]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance += amount
	a.PersonalPoints += points
	if activated {
		a.InitialPackBought = true
	}
	a.ActivityLog = append(a.ActivityLog, entry)
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CreditAncestor(ctx context.Context, id primitive.ObjectID, amount float64, teamPoints int, entry models.ActivityEntry) error {
	defer s.lock(ctx)()
	a, ok := s.accounts[id.Hex()]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance += amount
	a.TeamPoints += teamPoints
	a.ActivityLog = append(a.ActivityLog, entry)
	a.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) InsertCommissionRecord(ctx context.Context, rec *models.CommissionRecord) (bool, error) {
	defer s.lock(ctx)()
	for _, existing := range s.records {
		if existing.PurchaseID == rec.PurchaseID &&
			existing.RecipientID == rec.RecipientID &&
			existing.Reason == rec.Reason &&
			existing.Level == rec.Level {
			return false, nil
		}
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	s.records = append(s.records, *rec)
	return true, nil
}

func (s *MemoryStore) CommissionsFor(ctx context.Context, recipientID primitive.ObjectID) ([]models.CommissionRecord, error) {
	defer s.lock(ctx)()
	var out []models.CommissionRecord
	for _, rec := range s.records {
		if rec.RecipientID == recipientID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, ev *models.AuditEvent) error {
	defer s.lock(ctx)()
	if ev.ID.IsZero() {
		ev.ID = primitive.NewObjectID()
	}
	s.audit = append(s.audit, *ev)
	return nil
}

func (s *MemoryStore) RecentAudit(ctx context.Context, limit int64) ([]models.AuditEvent, error) {
	defer s.lock(ctx)()
	out := append([]models.AuditEvent(nil), s.audit...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	defer s.lock(ctx)()
	a, ok := s.admins[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a, nil
}

// AllCommissionRecords returns every recorded commission. Test helper.
func (s *MemoryStore) AllCommissionRecords() []models.CommissionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CommissionRecord(nil), s.records...)
}

// AuditEvents returns every audit event in append order. Test helper.
func (s *MemoryStore) AuditEvents() []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEvent(nil), s.audit...)
}
