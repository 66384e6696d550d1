package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

var (
	ErrUnitOfWorkRequired = errors.New("booking: unit of work required")
	ErrGuestsExceedLimit  = errors.New("booking: party exceeds the property guest limit")
)

type CreateBookingCommand struct {
	CommandID       string
	PropertyID      string
	GuestID         string
	CheckIn         time.Time
	CheckOut        time.Time
	Adults          int
	Children        int
	Infants         int
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &CreateBookingResult{} }

func (c CreateBookingCommand) Validate() error {
	if strings.TrimSpace(c.PropertyID) == "" {
		return errors.New("booking: property id is required")
	}
	if strings.TrimSpace(c.GuestID) == "" {
		return domainbooking.ErrGuestRequired
	}
	return nil
}

type CreateBookingResult struct {
	BookingID string `json:"booking_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Total     string `json:"total_price"`
	Currency  string `json:"currency"`
}

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*CreateBookingResult, error) {
	unit, ctx, release, err := h.unit(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	if release != nil {
		defer func() {
			release(committed)
		}()
	}

	dr, err := domainrange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}

	property, err := unit.Properties().ByID(ctx, domaincatalog.PropertyID(cmd.PropertyID))
	if err != nil {
		return nil, err
	}
	if property.State != domaincatalog.PropertyActive {
		return nil, domaincatalog.ErrPropertyInactive
	}
	guests := domainbooking.GuestCounts{Adults: cmd.Adults, Children: cmd.Children, Infants: cmd.Infants}
	if err := guests.Validate(); err != nil {
		return nil, err
	}
	if guests.Total() > property.GuestsLimit {
		return nil, ErrGuestsExceedLimit
	}

	price, err := domainpricing.QuoteForStay(property, dr)
	if err != nil {
		return nil, err
	}
	policy, err := domainbooking.ParsePolicyType(property.CancellationPolicy)
	if err != nil {
		return nil, err
	}

	bookingType := domainbooking.TypeRequest
	if property.InstantBook {
		bookingType = domainbooking.TypeInstant
	}

	now := time.Now().UTC()
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(cmd.CommandID),
		Reference:  newReference(cmd.CommandID),
		GuestID:    cmd.GuestID,
		HostID:     string(property.Host),
		PropertyID: property.ID,
		Range:      dr,
		Guests:     guests,
		Type:       bookingType,
		Policy:     policy,
		Pricing:    price,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &b.EventRecorder); err != nil {
		return nil, err
	}

	if release != nil {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
	}
	committed = true

	return &CreateBookingResult{
		BookingID: string(b.ID),
		Reference: b.Reference,
		Status:    string(b.Status),
		Total:     b.Pricing.TotalPrice.String(),
		Currency:  b.Pricing.Currency,
	}, nil
}

// unit returns the ambient unit of work, or begins one when this handler is
// dispatched without the transaction middleware.
func (h *CreateBookingHandler) unit(ctx context.Context) (uow.UnitOfWork, context.Context, func(committed bool), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if h.UoWFactory == nil {
		return nil, ctx, nil, ErrUnitOfWorkRequired
	}
	unit, err := h.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, ctx, nil, err
	}
	ctx = uow.ContextWithUnitOfWork(ctx, unit)
	release := func(committed bool) {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}
	return unit, ctx, release, nil
}

// newReference derives the immutable human-readable code handed to guests.
func newReference(id string) string {
	compact := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(compact) > 10 {
		compact = compact[:10]
	}
	return "BK-" + compact
}

var _ commands.Handler[CreateBookingCommand, *CreateBookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CreateBookingCommand)(nil)
var _ middleware.SelfValidating = (*CreateBookingCommand)(nil)
