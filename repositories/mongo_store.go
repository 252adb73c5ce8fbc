// repositories/mongo_store.go
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/redsponsor/redsponsor_backend/config"
	"github.com/redsponsor/redsponsor_backend/models"
)

// MongoStore is the production Store backed by MongoDB. Ancestor credits are
// single-document $inc/$push updates, so they are atomic without a session;
// only the buyer's critical path runs inside a transaction.
type MongoStore struct {
	client *mongo.Client
}

func NewMongoStore(client *mongo.Client) *MongoStore {
	return &MongoStore{client: client}
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return config.GetCollection(s.client, name)
}

// RunTransaction executes fn inside a Mongo session. The driver retries
// transient transaction errors internally; anything else surfaces to the
// caller for its own bounded retry.
func (s *MongoStore) RunTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) Purchase(ctx context.Context, id primitive.ObjectID) (*models.Purchase, error) {
	var p models.Purchase
	err := s.collection("purchases").FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) PurchaseByIdempotencyKey(ctx context.Context, key string) (*models.Purchase, error) {
	var p models.Purchase
	err := s.collection("purchases").FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) PendingPurchases(ctx context.Context) ([]models.Purchase, error) {
	cursor, err := s.collection("purchases").Find(ctx,
		bson.M{"status": models.PurchaseStatusPending},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var purchases []models.Purchase
	if err := cursor.All(ctx, &purchases); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *MongoStore) InsertPurchase(ctx context.Context, p *models.Purchase) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.collection("purchases").InsertOne(ctx, p)
	return err
}

func (s *MongoStore) ConfirmPurchase(ctx context.Context, id primitive.ObjectID, adminID string) error {
	return s.closePurchase(ctx, id, models.PurchaseStatusConfirmed, adminID, "")
}

func (s *MongoStore) RejectPurchase(ctx context.Context, id primitive.ObjectID, adminID, note string) error {
	return s.closePurchase(ctx, id, models.PurchaseStatusRejected, adminID, note)
}

// closePurchase flips a pending purchase to a terminal status. Filtering on
// the pending status makes the flip itself the idempotency guard.
func (s *MongoStore) closePurchase(ctx context.Context, id primitive.ObjectID, status, adminID, note string) error {
	now := time.Now()
	set := bson.M{
		"status":      status,
		"adminId":     adminID,
		"processedAt": now,
	}
	if note != "" {
		set["adminNote"] = note
	}
	res, err := s.collection("purchases").UpdateOne(ctx,
		bson.M{"_id": id, "status": models.PurchaseStatusPending},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func (s *MongoStore) MarkBonusPaid(ctx context.Context, purchaseID primitive.ObjectID) error {
	_, err := s.collection("purchases").UpdateByID(ctx, purchaseID, bson.M{
		"$set": bson.M{"initialBonusPaid": true},
	})
	return err
}

func (s *MongoStore) Account(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	err := s.collection("accounts").FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) AccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	var a models.Account
	err := s.collection("accounts").FindOne(ctx, bson.M{"handle": handle}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) DirectReferrals(ctx context.Context, handle string) (int64, error) {
	return s.collection("accounts").CountDocuments(ctx, bson.M{"sponsorHandle": handle})
}

func (s *MongoStore) SetReferralCode(ctx context.Context, id primitive.ObjectID, code string) error {
	_, err := s.collection("accounts").UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"referralCode": code, "updatedAt": time.Now()},
	})
	return err
}

func (s *MongoStore) CreditBuyer(ctx context.Context, id primitive.ObjectID, amount float64, points int, activated bool, entry models.ActivityEntry) error {
	set := bson.M{"updatedAt": time.Now()}
	if activated {
		set["initialPackBought"] = true
	}
	res, err := s.collection("accounts").UpdateByID(ctx, id, bson.M{
		"$inc":  bson.M{"balance": amount, "personalPoints": points},
		"$push": bson.M{"activityLog": entry},
		"$set":  set,
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoStore) CreditAncestor(ctx context.Context, id primitive.ObjectID, amount float64, teamPoints int, entry models.ActivityEntry) error {
	res, err := s.collection("accounts").UpdateByID(ctx, id, bson.M{
		"$inc":  bson.M{"balance": amount, "teamPoints": teamPoints},
		"$push": bson.M{"activityLog": entry},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MongoStore) InsertCommissionRecord(ctx context.Context, rec *models.CommissionRecord) (bool, error) {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	_, err := s.collection("commission_records").InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) CommissionsFor(ctx context.Context, recipientID primitive.ObjectID) ([]models.CommissionRecord, error) {
	cursor, err := s.collection("commission_records").Find(ctx,
		bson.M{"recipientId": recipientID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.CommissionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) AppendAudit(ctx context.Context, ev *models.AuditEvent) error {
	if ev.ID.IsZero() {
		ev.ID = primitive.NewObjectID()
	}
	_, err := s.collection("audit_log").InsertOne(ctx, ev)
	return err
}

func (s *MongoStore) RecentAudit(ctx context.Context, limit int64) ([]models.AuditEvent, error) {
	cursor, err := s.collection("audit_log").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *MongoStore) AdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	err := s.collection("admins").FindOne(ctx, bson.M{"email": email}).Decode(&admin)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
