package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpayout "staybook/internal/domain/payout"
	"staybook/internal/domain/shared/money"
)

// PayoutRepository keys records by booking id, which also enforces the
// at-most-one-payout-per-booking rule at the storage layer.
type PayoutRepository struct {
	col *mongo.Collection
}

func NewPayoutRepository(db *mongo.Database) *PayoutRepository {
	col := db.Collection("agg_payout")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_for", Value: 1}}})
	return &PayoutRepository{col: col}
}

func (r *PayoutRepository) ByBooking(ctx context.Context, bookingID string) (*domainpayout.Record, error) {
	var doc payoutDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": bookingID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainpayout.ErrPayoutNotFound
		}
		return nil, err
	}
	return doc.toRecord()
}

func (r *PayoutRepository) Save(ctx context.Context, record *domainpayout.Record) error {
	doc := newPayoutDocument(record)
	if record.Version == 0 {
		doc.Version = 1
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domainpayout.ErrAlreadyScheduled
			}
			return err
		}
		record.Version = doc.Version
		return nil
	}
	filter := bson.M{"_id": doc.ID, "version": record.Version}
	doc.Version = record.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update())
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConcurrentUpdate
	}
	record.Version = doc.Version
	return nil
}

func (r *PayoutRepository) ListDue(ctx context.Context, before time.Time) ([]*domainpayout.Record, error) {
	filter := bson.M{
		"status":        string(domainpayout.StatusPending),
		"scheduled_for": bson.M{"$lte": before.UnixMilli()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_for", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainpayout.Record
	for cur.Next(ctx) {
		var doc payoutDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		record, err := doc.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, cur.Err()
}

type payoutDocument struct {
	ID            string `bson:"_id"`
	Amount        string `bson:"amount"`
	Currency      string `bson:"currency"`
	Status        string `bson:"status"`
	ScheduledFor  int64  `bson:"scheduled_for"`
	CompletedAt   *int64 `bson:"completed_at,omitempty"`
	FailureReason string `bson:"failure_reason,omitempty"`
	CreatedAt     int64  `bson:"created_at"`
	UpdatedAt     int64  `bson:"updated_at"`
	Version       int64  `bson:"version"`
}

func newPayoutDocument(record *domainpayout.Record) payoutDocument {
	return payoutDocument{
		ID:            record.BookingID,
		Amount:        record.Amount.Amount.String(),
		Currency:      record.Amount.Currency,
		Status:        string(record.Status),
		ScheduledFor:  record.ScheduledFor.UnixMilli(),
		CompletedAt:   optionalMilli(record.CompletedAt),
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt.UnixMilli(),
		UpdatedAt:     record.UpdatedAt.UnixMilli(),
		Version:       record.Version,
	}
}

func (d payoutDocument) toRecord() (*domainpayout.Record, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("mongo: invalid amount %q: %w", d.Amount, err)
	}
	return &domainpayout.Record{
		BookingID:     d.ID,
		Amount:        money.Money{Amount: amount, Currency: d.Currency},
		Status:        domainpayout.Status(d.Status),
		ScheduledFor:  timestampToTime(d.ScheduledFor),
		CompletedAt:   optionalTime(d.CompletedAt),
		FailureReason: d.FailureReason,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}, nil
}
