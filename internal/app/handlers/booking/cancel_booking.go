package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

var ErrNotBookingGuest = errors.New("booking: caller is not the booking guest")

type CancelBookingCommand struct {
	BookingID       string
	Actor           domainbooking.Actor
	ActorID         string
	Reason          string
	IdempotencyKeyV string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CancelBookingCommand) ResultPrototype() any { return &CancelBookingResult{} }

type CancelBookingResult struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	RefundPercent int    `json:"refund_percent"`
	RefundAmount  string `json:"refund_amount"`
	Currency      string `json:"currency"`
}

type CancelBookingHandler struct {
	Payments policies.PaymentsPort
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*CancelBookingResult, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return nil, errors.New("booking: booking id is required")
	}
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	var (
		b       *domainbooking.Booking
		trigger = domainbooking.TriggerCancel
		err     error
	)
	switch cmd.Actor {
	case domainbooking.ActorGuest:
		b, err = unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
		if err != nil {
			return nil, err
		}
		if b.GuestID != strings.TrimSpace(cmd.ActorID) {
			return nil, ErrNotBookingGuest
		}
	case domainbooking.ActorHost:
		b, _, err = loadOwnedBooking(ctx, cmd.ActorID, bookingID)
		if err != nil {
			return nil, err
		}
	case domainbooking.ActorAdmin:
		trigger = domainbooking.TriggerAdminCancel
		b, err = unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("booking: unknown cancellation actor")
	}

	now := time.Now().UTC()
	res, err := b.Transition(trigger, cmd.Actor, strings.TrimSpace(cmd.Reason), now)
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &b.EventRecorder); err != nil {
		return nil, err
	}

	result := &CancelBookingResult{
		BookingID: string(b.ID),
		Status:    string(b.Status),
		Currency:  b.Pricing.Currency,
	}
	for _, effect := range res.Effects {
		refund, ok := effect.(domainbooking.IssueRefund)
		if !ok {
			continue
		}
		result.RefundPercent = refund.Percentage
		result.RefundAmount = refund.Amount.Amount.String()
		if h.Payments != nil && !refund.Amount.IsZero() {
			if err := h.Payments.IssueRefund(ctx, string(b.ID), refund.Amount, refund.Percentage); err != nil {
				return nil, err
			}
		}
	}

	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", b.ID, "actor", cmd.Actor, "status", b.Status, "refund_percent", result.RefundPercent)
	}
	return result, nil
}

var _ commands.Handler[CancelBookingCommand, *CancelBookingResult] = (*CancelBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CancelBookingCommand)(nil)
