package mongo

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/catalog"
)

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	col := db.Collection("agg_property")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "host", Value: 1}}})
	return &PropertyRepository{col: col}
}

func (r *PropertyRepository) ByID(ctx context.Context, id catalog.PropertyID) (*catalog.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, catalog.ErrPropertyNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *PropertyRepository) Save(ctx context.Context, property *catalog.Property) error {
	doc := newPropertyDocument(property)
	_, err := r.col.UpdateByID(ctx, doc.ID, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (r *PropertyRepository) ListByHost(ctx context.Context, host catalog.HostID) ([]*catalog.Property, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"host": string(host)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*catalog.Property
	for cur.Next(ctx) {
		var doc propertyDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		property, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, property)
	}
	return out, cur.Err()
}

type propertyDocument struct {
	ID                 string `bson:"_id"`
	Host               string `bson:"host"`
	Title              string `bson:"title"`
	City               string `bson:"city"`
	Country            string `bson:"country"`
	GuestsLimit        int    `bson:"guests_limit"`
	InstantBook        bool   `bson:"instant_book"`
	NightlyRate        string `bson:"nightly_rate"`
	CleaningFee        string `bson:"cleaning_fee"`
	ServiceFeeGuest    string `bson:"service_fee_guest"`
	ServiceFeeHost     string `bson:"service_fee_host"`
	VATRatePercent     string `bson:"vat_rate_percent"`
	Currency           string `bson:"currency"`
	CancellationPolicy string `bson:"cancellation_policy"`
	State              string `bson:"state"`
}

func newPropertyDocument(p *catalog.Property) propertyDocument {
	return propertyDocument{
		ID:                 string(p.ID),
		Host:               string(p.Host),
		Title:              p.Title,
		City:               p.City,
		Country:            p.Country,
		GuestsLimit:        p.GuestsLimit,
		InstantBook:        p.InstantBook,
		NightlyRate:        p.NightlyRate.String(),
		CleaningFee:        p.CleaningFee.String(),
		ServiceFeeGuest:    p.ServiceFeeGuest.String(),
		ServiceFeeHost:     p.ServiceFeeHost.String(),
		VATRatePercent:     p.VATRatePercent.String(),
		Currency:           p.Currency,
		CancellationPolicy: p.CancellationPolicy,
		State:              string(p.State),
	}
}

func (d propertyDocument) toAggregate() (*catalog.Property, error) {
	fields := map[string]string{
		"nightly_rate":      d.NightlyRate,
		"cleaning_fee":      d.CleaningFee,
		"service_fee_guest": d.ServiceFeeGuest,
		"service_fee_host":  d.ServiceFeeHost,
		"vat_rate_percent":  d.VATRatePercent,
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for name, raw := range fields {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("mongo: invalid %s %q: %w", name, raw, err)
		}
		parsed[name] = value
	}
	return &catalog.Property{
		ID:                 catalog.PropertyID(d.ID),
		Host:               catalog.HostID(d.Host),
		Title:              d.Title,
		City:               d.City,
		Country:            d.Country,
		GuestsLimit:        d.GuestsLimit,
		InstantBook:        d.InstantBook,
		NightlyRate:        parsed["nightly_rate"],
		CleaningFee:        parsed["cleaning_fee"],
		ServiceFeeGuest:    parsed["service_fee_guest"],
		ServiceFeeHost:     parsed["service_fee_host"],
		VATRatePercent:     parsed["vat_rate_percent"],
		Currency:           d.Currency,
		CancellationPolicy: d.CancellationPolicy,
		State:              catalog.PropertyState(d.State),
	}, nil
}
