package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	domainpayout "staybook/internal/domain/payout"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "created_at", Value: -1}}})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"guest_id": guestID}, opts)
	if err != nil {
		return nil, err
	}
	return r.drain(ctx, cur)
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID catalog.PropertyID) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"property_id": string(propertyID)}, opts)
	if err != nil {
		return nil, err
	}
	return r.drain(ctx, cur)
}

func (r *BookingRepository) drain(ctx context.Context, cur *mongo.Cursor) ([]*domainbooking.Booking, error) {
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		b, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, cur.Err()
}

// Money values are persisted as exact decimal strings, never as floats. A
// round-trip through the store must reproduce every amount digit for digit.
type pricingDocument struct {
	NightlyRate     string `bson:"nightly_rate"`
	Nights          int    `bson:"nights"`
	Subtotal        string `bson:"subtotal"`
	CleaningFee     string `bson:"cleaning_fee"`
	ServiceFeeGuest string `bson:"service_fee_guest"`
	ServiceFeeHost  string `bson:"service_fee_host"`
	VATRatePercent  string `bson:"vat_rate_percent"`
	VATAmount       string `bson:"vat_amount"`
	TotalPrice      string `bson:"total_price"`
	HostPayout      string `bson:"host_payout"`
	Currency        string `bson:"currency"`
}

type guestsDocument struct {
	Adults   int `bson:"adults"`
	Children int `bson:"children"`
	Infants  int `bson:"infants"`
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

type bookingDocument struct {
	ID                 string          `bson:"_id"`
	Reference          string          `bson:"reference"`
	GuestID            string          `bson:"guest_id"`
	HostID             string          `bson:"host_id"`
	PropertyID         string          `bson:"property_id"`
	Range              rangeDocument   `bson:"range"`
	Guests             guestsDocument  `bson:"guests"`
	Type               string          `bson:"type"`
	Policy             string          `bson:"cancellation_policy"`
	Pricing            pricingDocument `bson:"pricing"`
	Status             string          `bson:"status"`
	PayoutStatus       string          `bson:"payout_status,omitempty"`
	CancellationReason string          `bson:"cancellation_reason,omitempty"`
	CreatedAt          int64           `bson:"created_at"`
	ConfirmedAt        *int64          `bson:"confirmed_at,omitempty"`
	CancelledAt        *int64          `bson:"cancelled_at,omitempty"`
	UpdatedAt          int64           `bson:"updated_at"`
	Version            int64           `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:         string(b.ID),
		Reference:  b.Reference,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		PropertyID: string(b.PropertyID),
		Range:      rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:     guestsDocument{Adults: b.Guests.Adults, Children: b.Guests.Children, Infants: b.Guests.Infants},
		Type:       string(b.Type),
		Policy:     string(b.Policy),
		Pricing: pricingDocument{
			NightlyRate:     b.Pricing.NightlyRate.String(),
			Nights:          b.Pricing.Nights,
			Subtotal:        b.Pricing.Subtotal.String(),
			CleaningFee:     b.Pricing.CleaningFee.String(),
			ServiceFeeGuest: b.Pricing.ServiceFeeGuest.String(),
			ServiceFeeHost:  b.Pricing.ServiceFeeHost.String(),
			VATRatePercent:  b.Pricing.VATRatePercent.String(),
			VATAmount:       b.Pricing.VATAmount.String(),
			TotalPrice:      b.Pricing.TotalPrice.String(),
			HostPayout:      b.Pricing.HostPayout.String(),
			Currency:        b.Pricing.Currency,
		},
		Status:             string(b.Status),
		PayoutStatus:       string(b.PayoutStatus),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt.UnixMilli(),
		ConfirmedAt:        optionalMilli(b.ConfirmedAt),
		CancelledAt:        optionalMilli(b.CancelledAt),
		UpdatedAt:          b.UpdatedAt.UnixMilli(),
		Version:            b.Version,
	}
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	breakdown, err := d.Pricing.toBreakdown()
	if err != nil {
		return nil, err
	}
	dr := domainrange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)}
	agg := &domainbooking.Booking{
		ID:                 domainbooking.BookingID(d.ID),
		Reference:          d.Reference,
		GuestID:            d.GuestID,
		HostID:             d.HostID,
		PropertyID:         catalog.PropertyID(d.PropertyID),
		Range:              dr,
		Guests:             domainbooking.GuestCounts{Adults: d.Guests.Adults, Children: d.Guests.Children, Infants: d.Guests.Infants},
		Type:               domainbooking.BookingType(d.Type),
		Policy:             domainbooking.PolicyType(d.Policy),
		Pricing:            breakdown,
		Status:             domainbooking.Status(d.Status),
		PayoutStatus:       domainpayout.Status(d.PayoutStatus),
		CancellationReason: d.CancellationReason,
		CreatedAt:          timestampToTime(d.CreatedAt),
		ConfirmedAt:        optionalTime(d.ConfirmedAt),
		CancelledAt:        optionalTime(d.CancelledAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
		Version:            d.Version,
	}
	return agg, nil
}

func (d pricingDocument) toBreakdown() (domainpricing.BookingPricing, error) {
	fields := map[string]string{
		"nightly_rate":      d.NightlyRate,
		"subtotal":          d.Subtotal,
		"cleaning_fee":      d.CleaningFee,
		"service_fee_guest": d.ServiceFeeGuest,
		"service_fee_host":  d.ServiceFeeHost,
		"vat_rate_percent":  d.VATRatePercent,
		"vat_amount":        d.VATAmount,
		"total_price":       d.TotalPrice,
		"host_payout":       d.HostPayout,
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for name, raw := range fields {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return domainpricing.BookingPricing{}, fmt.Errorf("mongo: invalid %s %q: %w", name, raw, err)
		}
		parsed[name] = value
	}
	return domainpricing.BookingPricing{
		NightlyRate:     parsed["nightly_rate"],
		Nights:          d.Nights,
		Subtotal:        parsed["subtotal"],
		CleaningFee:     parsed["cleaning_fee"],
		ServiceFeeGuest: parsed["service_fee_guest"],
		ServiceFeeHost:  parsed["service_fee_host"],
		VATRatePercent:  parsed["vat_rate_percent"],
		VATAmount:       parsed["vat_amount"],
		TotalPrice:      parsed["total_price"],
		HostPayout:      parsed["host_payout"],
		Currency:        d.Currency,
	}, nil
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optionalMilli(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func optionalTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := timestampToTime(*ms)
	return &t
}
