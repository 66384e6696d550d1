package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/outbox"
	"staybook/internal/app/schedule"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayout "staybook/internal/domain/payout"
)

const (
	completeBookingKey = "booking.complete"
	noShowBookingKey   = "booking.no_show"
)

type CompleteBookingCommand struct {
	BookingID string
}

func (c CompleteBookingCommand) Key() string { return completeBookingKey }

type CompleteBookingResult struct {
	BookingID       string `json:"booking_id"`
	Status          string `json:"status"`
	PayoutScheduled bool   `json:"payout_scheduled"`
}

// CompleteBookingHandler moves a confirmed booking past its check-out date
// and schedules the host payout. Replays are harmless: an already-completed
// booking rejects the transition before a second payout record can exist, and
// the payout repository refuses duplicates regardless.
type CompleteBookingHandler struct {
	PayoutDelayDays int
	Scheduler       schedule.Scheduler
	Outbox          outbox.Outbox
	Encoder         outbox.EventEncoder
	Logger          *slog.Logger
}

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*CompleteBookingResult, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return nil, errors.New("booking: booking id is required")
	}
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := b.Transition(domainbooking.TriggerComplete, domainbooking.ActorSystem, "", now)
	if err != nil {
		return nil, err
	}

	result := &CompleteBookingResult{BookingID: string(b.ID), Status: string(b.Status)}
	for _, effect := range res.Effects {
		req, ok := effect.(domainbooking.SchedulePayout)
		if !ok {
			continue
		}
		if _, err := unit.Payouts().ByBooking(ctx, string(b.ID)); err == nil {
			// A record already exists; do not create a second one.
			continue
		} else if !errors.Is(err, domainpayout.ErrPayoutNotFound) {
			return nil, err
		}
		scheduledFor := req.CheckOut.AddDate(0, 0, h.PayoutDelayDays)
		record, err := domainpayout.Schedule(string(b.ID), req.Amount, scheduledFor, now)
		if err != nil {
			return nil, err
		}
		if err := unit.Payouts().Save(ctx, record); err != nil {
			return nil, err
		}
		b.PayoutStatus = record.Status
		if err := drainEvents(ctx, h.Outbox, h.Encoder, &record.EventRecorder); err != nil {
			return nil, err
		}
		if h.Scheduler != nil {
			if err := h.Scheduler.Schedule(ctx, "payout.process", string(b.ID), scheduledFor); err != nil {
				return nil, err
			}
		}
		result.PayoutScheduled = true
	}

	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &b.EventRecorder); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking completed", "booking_id", b.ID, "payout_scheduled", result.PayoutScheduled)
	}
	return result, nil
}

type MarkNoShowCommand struct {
	HostID    string
	BookingID string
}

func (c MarkNoShowCommand) Key() string { return noShowBookingKey }

type MarkNoShowHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *MarkNoShowHandler) Handle(ctx context.Context, cmd MarkNoShowCommand) (*HostActionResult, error) {
	b, unit, err := loadOwnedBooking(ctx, cmd.HostID, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := b.Transition(domainbooking.TriggerNoShow, domainbooking.ActorHost, "", now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &b.EventRecorder); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking marked no-show", "booking_id", b.ID, "host_id", cmd.HostID)
	}
	return &HostActionResult{BookingID: string(b.ID), Status: string(b.Status)}, nil
}

var _ commands.Handler[CompleteBookingCommand, *CompleteBookingResult] = (*CompleteBookingHandler)(nil)
var _ commands.Handler[MarkNoShowCommand, *HostActionResult] = (*MarkNoShowHandler)(nil)
