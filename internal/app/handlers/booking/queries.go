package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const (
	guestBookingsKey = "booking.guest_list"
	bookingByIDKey   = "booking.by_id"
	refundPreviewKey = "booking.refund_preview"
)

type GuestBookingsQuery struct {
	GuestID string
}

func (q GuestBookingsQuery) Key() string { return guestBookingsKey }

type GuestBookingsHandler struct {
	Factory uow.UoWFactory
}

func (h *GuestBookingsHandler) Handle(ctx context.Context, query GuestBookingsQuery) (*dto.BookingCollection, error) {
	guestID := strings.TrimSpace(query.GuestID)
	if guestID == "" {
		return nil, errors.New("booking: guest id is required")
	}
	unit, execCtx, release, err := support.BeginReadOnlyUnit(ctx, h.Factory)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	items, err := unit.Bookings().ListByGuest(execCtx, guestID)
	if err != nil {
		return nil, err
	}
	collection := &dto.BookingCollection{Items: make([]dto.BookingView, 0, len(items)), Total: len(items)}
	for _, b := range items {
		collection.Items = append(collection.Items, dto.MapBooking(b))
	}
	return collection, nil
}

type BookingByIDQuery struct {
	BookingID string
}

func (q BookingByIDQuery) Key() string { return bookingByIDKey }

type BookingByIDHandler struct {
	Factory uow.UoWFactory
}

func (h *BookingByIDHandler) Handle(ctx context.Context, query BookingByIDQuery) (*dto.BookingView, error) {
	bookingID := strings.TrimSpace(query.BookingID)
	if bookingID == "" {
		return nil, errors.New("booking: booking id is required")
	}
	unit, execCtx, release, err := support.BeginReadOnlyUnit(ctx, h.Factory)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(bookingID))
	if err != nil {
		return nil, err
	}
	view := dto.MapBooking(b)
	return &view, nil
}

// RefundPreviewQuery answers "what would I get back if I cancelled now"
// without touching the booking.
type RefundPreviewQuery struct {
	BookingID string
	At        time.Time
}

func (q RefundPreviewQuery) Key() string { return refundPreviewKey }

type RefundPreviewResult struct {
	BookingID        string `json:"booking_id"`
	Policy           string `json:"policy"`
	RefundPercentage int    `json:"refund_percentage"`
	RefundAmount     string `json:"refund_amount"`
	Currency         string `json:"currency"`
}

type RefundPreviewHandler struct {
	Factory uow.UoWFactory
}

func (h *RefundPreviewHandler) Handle(ctx context.Context, query RefundPreviewQuery) (*RefundPreviewResult, error) {
	bookingID := strings.TrimSpace(query.BookingID)
	if bookingID == "" {
		return nil, errors.New("booking: booking id is required")
	}
	unit, execCtx, release, err := support.BeginReadOnlyUnit(ctx, h.Factory)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(bookingID))
	if err != nil {
		return nil, err
	}

	at := query.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	amount, percentage := domainbooking.RefundAmount(b.Policy, b.Pricing.Total(), b.Range.CheckIn, at)
	return &RefundPreviewResult{
		BookingID:        string(b.ID),
		Policy:           string(b.Policy),
		RefundPercentage: percentage,
		RefundAmount:     amount.Amount.String(),
		Currency:         amount.Currency,
	}, nil
}

var _ queries.Handler[GuestBookingsQuery, *dto.BookingCollection] = (*GuestBookingsHandler)(nil)
var _ queries.Handler[BookingByIDQuery, *dto.BookingView] = (*BookingByIDHandler)(nil)
var _ queries.Handler[RefundPreviewQuery, *RefundPreviewResult] = (*RefundPreviewHandler)(nil)
