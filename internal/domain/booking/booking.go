package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/catalog"
	"staybook/internal/domain/payout"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrInvalidGuests    = errors.New("booking: at least one adult is required and counts must be non-negative")
	ErrGuestRequired    = errors.New("booking: guest id required")
	ErrHostRequired     = errors.New("booking: host id required")
	ErrPropertyRequired = errors.New("booking: property id required")
	ErrInvalidType      = errors.New("booking: unknown booking type")
	ErrBookingNotFound  = errors.New("booking: not found")
)

type BookingID string

// BookingType is fixed at creation and never changes.
type BookingType string

const (
	TypeInstant BookingType = "INSTANT"
	TypeRequest BookingType = "REQUEST"
)

type Status string

const (
	StatusPending          Status = "PENDING"
	StatusConfirmed        Status = "CONFIRMED"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelledByGuest Status = "CANCELLED_BY_GUEST"
	StatusCancelledByHost  Status = "CANCELLED_BY_HOST"
	StatusCancelled        Status = "CANCELLED"
	StatusRejected         Status = "REJECTED"
	StatusNoShow           Status = "NO_SHOW"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelledByGuest, StatusCancelledByHost, StatusCancelled, StatusRejected, StatusNoShow:
		return true
	}
	return false
}

// Cancelled groups the cancelled variants; for payout purposes the generic
// administrative CANCELLED is equivalent to the actor-specific ones.
func (s Status) Cancelled() bool {
	switch s {
	case StatusCancelledByGuest, StatusCancelledByHost, StatusCancelled:
		return true
	}
	return false
}

type GuestCounts struct {
	Adults   int
	Children int
	Infants  int
}

func (g GuestCounts) Validate() error {
	if g.Adults < 1 || g.Children < 0 || g.Infants < 0 {
		return ErrInvalidGuests
	}
	return nil
}

func (g GuestCounts) Total() int {
	return g.Adults + g.Children + g.Infants
}

// Booking is the aggregate root for one reservation. It is created exactly
// once, never deleted, and only transitioned to a terminal status. Pricing and
// the cancellation policy are snapshots taken at creation.
type Booking struct {
	ID                 BookingID
	Reference          string
	GuestID            string
	HostID             string
	PropertyID         catalog.PropertyID
	Range              daterange.DateRange
	Guests             GuestCounts
	Type               BookingType
	Policy             PolicyType
	Pricing            pricing.BookingPricing
	Status             Status
	PayoutStatus       payout.Status
	CancellationReason string
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByProperty(ctx context.Context, propertyID catalog.PropertyID) ([]*Booking, error)
}

type CreateParams struct {
	ID         BookingID
	Reference  string
	GuestID    string
	HostID     string
	PropertyID catalog.PropertyID
	Range      daterange.DateRange
	Guests     GuestCounts
	Type       BookingType
	Policy     PolicyType
	Pricing    pricing.BookingPricing
	CreatedAt  time.Time
}

// NewBooking validates the create parameters and constructs the aggregate in
// its initial status: instant bookings start CONFIRMED, request bookings wait
// in PENDING for host acceptance.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if strings.TrimSpace(params.HostID) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(string(params.PropertyID)) == "" {
		return nil, ErrPropertyRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if err := params.Guests.Validate(); err != nil {
		return nil, err
	}
	if params.Type != TypeInstant && params.Type != TypeRequest {
		return nil, ErrInvalidType
	}
	if _, ok := params.Policy.Details(); !ok {
		return nil, ErrUnknownPolicy
	}
	if err := params.Pricing.Validate(); err != nil {
		return nil, err
	}

	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		Reference:  params.Reference,
		GuestID:    params.GuestID,
		HostID:     params.HostID,
		PropertyID: params.PropertyID,
		Range:      params.Range,
		Guests:     params.Guests,
		Type:       params.Type,
		Policy:     params.Policy,
		Pricing:    params.Pricing,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(BookingRequested{
		BookingID:   b.ID,
		Reference:   b.Reference,
		PropertyID:  b.PropertyID,
		GuestID:     b.GuestID,
		Range:       b.Range,
		Guests:      b.Guests,
		QuotedTotal: b.Pricing.Total(),
		At:          now,
	})
	if params.Type == TypeInstant {
		b.Status = StatusConfirmed
		confirmed := now
		b.ConfirmedAt = &confirmed
		b.Record(BookingConfirmed{BookingID: b.ID, PropertyID: b.PropertyID, Range: b.Range, Total: b.Pricing.Total(), At: now})
	}
	return b, nil
}
