package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "staybook/internal/domain/booking"
	domainpayout "staybook/internal/domain/payout"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func TestBookingDocumentRoundTripPreservesDecimals(t *testing.T) {
	checkIn := time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)
	dr, err := domainrange.New(checkIn, checkIn.AddDate(0, 0, 7))
	require.NoError(t, err)
	price, err := domainpricing.Compute(domainpricing.Input{
		NightlyRate:     decimal.RequireFromString("750.25"),
		Nights:          dr.Nights(),
		CleaningFee:     decimal.RequireFromString("120"),
		ServiceFeeGuest: decimal.RequireFromString("95.5"),
		ServiceFeeHost:  decimal.RequireFromString("60"),
		VATRatePercent:  decimal.RequireFromString("5"),
		Currency:        "AED",
	})
	require.NoError(t, err)

	confirmedAt := checkIn.AddDate(0, 0, -10)
	b := &domainbooking.Booking{
		ID:           "bk-7",
		Reference:    "BK-ROUNDTRIP",
		GuestID:      "guest-9",
		HostID:       "host-3",
		PropertyID:   "prop-5",
		Range:        dr,
		Guests:       domainbooking.GuestCounts{Adults: 2, Children: 1},
		Type:         domainbooking.TypeRequest,
		Policy:       domainbooking.PolicyStrict,
		Pricing:      price,
		Status:       domainbooking.StatusConfirmed,
		PayoutStatus: domainpayout.StatusPending,
		CreatedAt:    confirmedAt.Add(-time.Hour),
		ConfirmedAt:  &confirmedAt,
		UpdatedAt:    confirmedAt,
		Version:      3,
	}

	doc := newBookingDocument(b)
	// VAT on 5467.25 at 5% carries four decimal places; the string form must
	// keep every digit.
	assert.Equal(t, price.VATAmount.String(), doc.Pricing.VATAmount)

	restored, err := doc.toAggregate()
	require.NoError(t, err)
	assert.Equal(t, b.ID, restored.ID)
	assert.Equal(t, b.Policy, restored.Policy)
	assert.Equal(t, b.Guests, restored.Guests)
	assert.Equal(t, b.PayoutStatus, restored.PayoutStatus)
	assert.True(t, restored.Range.CheckIn.Equal(dr.CheckIn))
	assert.True(t, restored.Range.CheckOut.Equal(dr.CheckOut))
	require.NotNil(t, restored.ConfirmedAt)
	assert.True(t, restored.ConfirmedAt.Equal(confirmedAt))
	assert.Nil(t, restored.CancelledAt)
	assert.Equal(t, b.Version, restored.Version)

	assert.True(t, restored.Pricing.VATAmount.Equal(price.VATAmount))
	assert.True(t, restored.Pricing.TotalPrice.Equal(price.TotalPrice))
	assert.True(t, restored.Pricing.HostPayout.Equal(price.HostPayout))
	assert.Equal(t, price.Nights, restored.Pricing.Nights)
	assert.NoError(t, restored.Pricing.Validate())
}

func TestBookingDocumentRejectsCorruptAmount(t *testing.T) {
	doc := bookingDocument{
		Pricing: pricingDocument{
			NightlyRate:     "not-a-number",
			Subtotal:        "0",
			CleaningFee:     "0",
			ServiceFeeGuest: "0",
			ServiceFeeHost:  "0",
			VATRatePercent:  "0",
			VATAmount:       "0",
			TotalPrice:      "0",
			HostPayout:      "0",
		},
	}
	_, err := doc.toAggregate()
	assert.Error(t, err)
}

func TestPayoutDocumentRoundTrip(t *testing.T) {
	completed := time.Date(2026, 7, 12, 9, 30, 0, 0, time.UTC)
	record := &domainpayout.Record{
		BookingID:    "bk-7",
		Amount:       money.Money{Amount: decimal.RequireFromString("5371.75"), Currency: "AED"},
		Status:       domainpayout.StatusCompleted,
		ScheduledFor: completed.AddDate(0, 0, -3),
		CompletedAt:  &completed,
		CreatedAt:    completed.AddDate(0, 0, -5),
		UpdatedAt:    completed,
		Version:      4,
	}

	doc := newPayoutDocument(record)
	assert.Equal(t, "5371.75", doc.Amount)

	restored, err := doc.toRecord()
	require.NoError(t, err)
	assert.Equal(t, record.BookingID, restored.BookingID)
	assert.True(t, restored.Amount.Equal(record.Amount))
	assert.Equal(t, domainpayout.StatusCompleted, restored.Status)
	require.NotNil(t, restored.CompletedAt)
	assert.True(t, restored.CompletedAt.Equal(completed))
	assert.Equal(t, record.Version, restored.Version)
}
