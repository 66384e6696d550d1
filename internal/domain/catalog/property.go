package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrPropertyNotFound = errors.New("catalog: property not found")
	ErrPropertyInactive = errors.New("catalog: property is not active")
	ErrTitleRequired    = errors.New("catalog: title is required")
	ErrNightlyRate      = errors.New("catalog: nightly rate must be positive")
	ErrNegativeFee      = errors.New("catalog: fees must not be negative")
	ErrGuestsLimit      = errors.New("catalog: guests limit must be at least 1")
	ErrCurrencyRequired = errors.New("catalog: currency is required")
)

type PropertyID string
type HostID string

type PropertyState string

const (
	PropertyDraft     PropertyState = "DRAFT"
	PropertyActive    PropertyState = "ACTIVE"
	PropertySuspended PropertyState = "SUSPENDED"
)

// Property is the catalog read model the booking core consumes: identity,
// the rate card a stay is priced from, and the cancellation policy tier that
// gets snapshotted onto new bookings. Everything else about a property
// (media, amenities, search metadata) lives with the catalog collaborator.
type Property struct {
	ID                 PropertyID
	Host               HostID
	Title              string
	City               string
	Country            string
	GuestsLimit        int
	InstantBook        bool
	NightlyRate        decimal.Decimal
	CleaningFee        decimal.Decimal
	ServiceFeeGuest    decimal.Decimal
	ServiceFeeHost     decimal.Decimal
	VATRatePercent     decimal.Decimal
	Currency           string
	CancellationPolicy string
	State              PropertyState
}

// Validate checks the rate-card invariants a booking quote depends on.
func (p *Property) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrTitleRequired
	}
	if p.GuestsLimit < 1 {
		return ErrGuestsLimit
	}
	if !p.NightlyRate.IsPositive() {
		return ErrNightlyRate
	}
	if p.CleaningFee.IsNegative() || p.ServiceFeeGuest.IsNegative() || p.ServiceFeeHost.IsNegative() {
		return ErrNegativeFee
	}
	if len(strings.TrimSpace(p.Currency)) != 3 {
		return ErrCurrencyRequired
	}
	return nil
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, property *Property) error
	ListByHost(ctx context.Context, host HostID) ([]*Property, error)
}
