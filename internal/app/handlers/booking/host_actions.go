package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
)

const (
	acceptBookingKey  = "booking.accept"
	declineBookingKey = "booking.decline"
)

var ErrBookingNotOwned = errors.New("booking: not owned by host")

type AcceptBookingCommand struct {
	HostID    string
	BookingID string
}

func (c AcceptBookingCommand) Key() string { return acceptBookingKey }

type DeclineBookingCommand struct {
	HostID    string
	BookingID string
	Reason    string
}

func (c DeclineBookingCommand) Key() string { return declineBookingKey }

type HostActionResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type AcceptBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *AcceptBookingHandler) Handle(ctx context.Context, cmd AcceptBookingCommand) (*HostActionResult, error) {
	b, unit, err := loadOwnedBooking(ctx, cmd.HostID, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := b.Transition(domainbooking.TriggerAccept, domainbooking.ActorHost, "", now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &b.EventRecorder); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking accepted", "booking_id", b.ID, "host_id", cmd.HostID)
	}
	return &HostActionResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

type DeclineBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *DeclineBookingHandler) Handle(ctx context.Context, cmd DeclineBookingCommand) (*HostActionResult, error) {
	b, unit, err := loadOwnedBooking(ctx, cmd.HostID, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "host-declined"
	}
	now := time.Now().UTC()
	if _, err := b.Transition(domainbooking.TriggerDecline, domainbooking.ActorHost, reason, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &b.EventRecorder); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking declined", "booking_id", b.ID, "host_id", cmd.HostID, "reason", reason)
	}
	return &HostActionResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

// loadOwnedBooking fetches the booking from the ambient unit of work and
// checks the acting host owns the property it was made against.
func loadOwnedBooking(ctx context.Context, hostID, bookingID string) (*domainbooking.Booking, uow.UnitOfWork, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return nil, nil, errors.New("booking: host id is required")
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, nil, errors.New("booking: booking id is required")
	}
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, nil, uow.ErrUnitOfWorkMissing
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return nil, nil, err
	}
	property, err := unit.Properties().ByID(ctx, b.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	if property.Host != domaincatalog.HostID(hostID) {
		return nil, nil, ErrBookingNotOwned
	}
	return b, unit, nil
}

var _ commands.Handler[AcceptBookingCommand, *HostActionResult] = (*AcceptBookingHandler)(nil)
var _ commands.Handler[DeclineBookingCommand, *HostActionResult] = (*DeclineBookingHandler)(nil)
