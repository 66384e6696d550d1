package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"staybook/internal/domain/catalog"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidStayDuration = errors.New("pricing: stay must cover at least one night")
	ErrInvalidRate         = errors.New("pricing: nightly rate must be positive and fees non-negative")
	ErrInvalidVATRate      = errors.New("pricing: vat rate must be between 0 and 100")
	ErrCurrencyUnset       = errors.New("pricing: currency must be defined")
	ErrInconsistent        = errors.New("pricing: breakdown does not reconcile")
)

var hundred = decimal.NewFromInt(100)

// Input is the raw rate card a stay is priced from. Service fees arrive
// precomputed from the external fee schedule; this package never derives them.
type Input struct {
	NightlyRate     decimal.Decimal
	Nights          int
	CleaningFee     decimal.Decimal
	ServiceFeeGuest decimal.Decimal
	ServiceFeeHost  decimal.Decimal
	VATRatePercent  decimal.Decimal
	Currency        string
}

// BookingPricing is the immutable monetary breakdown computed once per
// booking. All amounts are exact decimals in a single currency; TotalPrice is
// always TaxableBase + VATAmount so the guest charge reconciles without drift.
type BookingPricing struct {
	NightlyRate     decimal.Decimal
	Nights          int
	Subtotal        decimal.Decimal
	CleaningFee     decimal.Decimal
	ServiceFeeGuest decimal.Decimal
	ServiceFeeHost  decimal.Decimal
	VATRatePercent  decimal.Decimal
	VATAmount       decimal.Decimal
	TotalPrice      decimal.Decimal
	HostPayout      decimal.Decimal
	Currency        string
}

// Compute derives the full breakdown from raw inputs.
//
// VAT applies to the guest-facing charges only (subtotal + cleaning fee +
// guest service fee); the host-side fee is the platform's commission and never
// enters the taxable base. The host receives room revenue plus cleaning fee
// minus that commission; VAT and the guest-side fee do not pass through.
func Compute(in Input) (BookingPricing, error) {
	if in.Nights < 1 {
		return BookingPricing{}, ErrInvalidStayDuration
	}
	if !in.NightlyRate.IsPositive() {
		return BookingPricing{}, ErrInvalidRate
	}
	if in.CleaningFee.IsNegative() || in.ServiceFeeGuest.IsNegative() || in.ServiceFeeHost.IsNegative() {
		return BookingPricing{}, ErrInvalidRate
	}
	if in.VATRatePercent.IsNegative() || in.VATRatePercent.GreaterThan(hundred) {
		return BookingPricing{}, ErrInvalidVATRate
	}
	if len(in.Currency) != 3 {
		return BookingPricing{}, ErrCurrencyUnset
	}

	subtotal := in.NightlyRate.Mul(decimal.NewFromInt(int64(in.Nights)))
	taxableBase := subtotal.Add(in.CleaningFee).Add(in.ServiceFeeGuest)
	vatAmount := taxableBase.Mul(in.VATRatePercent).Div(hundred)
	totalPrice := taxableBase.Add(vatAmount)
	hostPayout := subtotal.Add(in.CleaningFee).Sub(in.ServiceFeeHost)

	return BookingPricing{
		NightlyRate:     in.NightlyRate,
		Nights:          in.Nights,
		Subtotal:        subtotal,
		CleaningFee:     in.CleaningFee,
		ServiceFeeGuest: in.ServiceFeeGuest,
		ServiceFeeHost:  in.ServiceFeeHost,
		VATRatePercent:  in.VATRatePercent,
		VATAmount:       vatAmount,
		TotalPrice:      totalPrice,
		HostPayout:      hostPayout,
		Currency:        in.Currency,
	}, nil
}

// QuoteForStay prices a stay against a property's rate card.
func QuoteForStay(property *catalog.Property, dr daterange.DateRange) (BookingPricing, error) {
	if err := dr.Validate(); err != nil {
		return BookingPricing{}, ErrInvalidStayDuration
	}
	return Compute(Input{
		NightlyRate:     property.NightlyRate,
		Nights:          dr.Nights(),
		CleaningFee:     property.CleaningFee,
		ServiceFeeGuest: property.ServiceFeeGuest,
		ServiceFeeHost:  property.ServiceFeeHost,
		VATRatePercent:  property.VATRatePercent,
		Currency:        property.Currency,
	})
}

// Validate re-checks the reconciliation invariants; used after deserialization.
func (p BookingPricing) Validate() error {
	if len(p.Currency) != 3 {
		return ErrCurrencyUnset
	}
	if p.Nights < 1 {
		return ErrInvalidStayDuration
	}
	taxableBase := p.Subtotal.Add(p.CleaningFee).Add(p.ServiceFeeGuest)
	if !p.Subtotal.Equal(p.NightlyRate.Mul(decimal.NewFromInt(int64(p.Nights)))) {
		return ErrInconsistent
	}
	if !p.TotalPrice.Equal(taxableBase.Add(p.VATAmount)) {
		return ErrInconsistent
	}
	if !p.HostPayout.Equal(p.Subtotal.Add(p.CleaningFee).Sub(p.ServiceFeeHost)) {
		return ErrInconsistent
	}
	return nil
}

// Total is the guest's full charge as Money.
func (p BookingPricing) Total() money.Money {
	return money.Money{Amount: p.TotalPrice, Currency: p.Currency}
}

// Payout is the host's settlement amount as Money.
func (p BookingPricing) Payout() money.Money {
	return money.Money{Amount: p.HostPayout, Currency: p.Currency}
}
