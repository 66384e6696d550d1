package dto

import (
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/payout"
	"staybook/internal/domain/pricing"
)

// PricingView renders the monetary breakdown with exact decimal strings so
// the wire format never loses precision to float encoding.
type PricingView struct {
	NightlyRate     string `json:"nightly_rate"`
	Nights          int    `json:"nights"`
	Subtotal        string `json:"subtotal"`
	CleaningFee     string `json:"cleaning_fee"`
	ServiceFeeGuest string `json:"service_fee_guest"`
	ServiceFeeHost  string `json:"service_fee_host"`
	VATRatePercent  string `json:"vat_rate_percent"`
	VATAmount       string `json:"vat_amount"`
	TotalPrice      string `json:"total_price"`
	HostPayout      string `json:"host_payout"`
	Currency        string `json:"currency"`
}

type BookingView struct {
	ID                 string      `json:"id"`
	Reference          string      `json:"reference"`
	PropertyID         string      `json:"property_id"`
	GuestID            string      `json:"guest_id"`
	HostID             string      `json:"host_id"`
	CheckIn            time.Time   `json:"check_in"`
	CheckOut           time.Time   `json:"check_out"`
	Adults             int         `json:"adults"`
	Children           int         `json:"children"`
	Infants            int         `json:"infants"`
	Type               string      `json:"type"`
	Policy             string      `json:"cancellation_policy"`
	Status             string      `json:"status"`
	PayoutStatus       string      `json:"payout_status,omitempty"`
	Pricing            PricingView `json:"pricing"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	ConfirmedAt        *time.Time  `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty"`
}

type BookingCollection struct {
	Items []BookingView `json:"items"`
	Total int           `json:"total"`
}

type PayoutView struct {
	BookingID     string     `json:"booking_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

func MapPricing(p pricing.BookingPricing) PricingView {
	return PricingView{
		NightlyRate:     p.NightlyRate.String(),
		Nights:          p.Nights,
		Subtotal:        p.Subtotal.String(),
		CleaningFee:     p.CleaningFee.String(),
		ServiceFeeGuest: p.ServiceFeeGuest.String(),
		ServiceFeeHost:  p.ServiceFeeHost.String(),
		VATRatePercent:  p.VATRatePercent.String(),
		VATAmount:       p.VATAmount.String(),
		TotalPrice:      p.TotalPrice.String(),
		HostPayout:      p.HostPayout.String(),
		Currency:        p.Currency,
	}
}

func MapBooking(b *booking.Booking) BookingView {
	return BookingView{
		ID:                 string(b.ID),
		Reference:          b.Reference,
		PropertyID:         string(b.PropertyID),
		GuestID:            b.GuestID,
		HostID:             b.HostID,
		CheckIn:            b.Range.CheckIn,
		CheckOut:           b.Range.CheckOut,
		Adults:             b.Guests.Adults,
		Children:           b.Guests.Children,
		Infants:            b.Guests.Infants,
		Type:               string(b.Type),
		Policy:             string(b.Policy),
		Status:             string(b.Status),
		PayoutStatus:       string(b.PayoutStatus),
		Pricing:            MapPricing(b.Pricing),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
	}
}

func MapPayout(r *payout.Record) PayoutView {
	return PayoutView{
		BookingID:     r.BookingID,
		Amount:        r.Amount.Amount.String(),
		Currency:      r.Amount.Currency,
		Status:        string(r.Status),
		ScheduledFor:  r.ScheduledFor,
		CompletedAt:   r.CompletedAt,
		FailureReason: r.FailureReason,
	}
}
