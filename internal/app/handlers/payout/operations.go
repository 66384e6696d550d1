package payout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayout "staybook/internal/domain/payout"
	"staybook/internal/domain/shared/events"
)

const (
	beginPayoutKey  = "payout.begin"
	settlePayoutKey = "payout.settle"
	failPayoutKey   = "payout.fail"
	retryPayoutKey  = "payout.retry"
	payoutByIDKey   = "payout.by_booking"
	payoutsDueKey   = "payout.due"
)

var ErrBookingIDRequired = errors.New("payout: booking id is required")

// AdvanceCommand drives a payout record through one edge of its status graph.
// Action names mirror the domain operations: begin, settle, fail, retry.
type AdvanceCommand struct {
	BookingID string
	Action    string
	Reason    string
}

func (c AdvanceCommand) Key() string {
	switch c.Action {
	case "settle":
		return settlePayoutKey
	case "fail":
		return failPayoutKey
	case "retry":
		return retryPayoutKey
	default:
		return beginPayoutKey
	}
}

type AdvanceResult struct {
	Payout dto.PayoutView `json:"payout"`
}

// AdvanceHandler applies a single payout transition and mirrors the resulting
// status onto the owning booking so booking reads stay accurate without a
// join.
type AdvanceHandler struct {
	Action  string
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
}

func (h *AdvanceHandler) Handle(ctx context.Context, cmd AdvanceCommand) (*AdvanceResult, error) {
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return nil, ErrBookingIDRequired
	}
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}

	record, err := unit.Payouts().ByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch h.Action {
	case "begin":
		err = record.Begin(now)
	case "settle":
		err = record.Settle(now)
	case "fail":
		err = record.Fail(cmd.Reason, now)
	case "retry":
		err = record.Retry(now)
	default:
		return nil, errors.New("payout: unknown action " + h.Action)
	}
	if err != nil {
		return nil, err
	}

	if err := unit.Payouts().Save(ctx, record); err != nil {
		return nil, err
	}
	if err := h.mirrorBookingStatus(ctx, unit, record); err != nil {
		return nil, err
	}
	if err := drainEvents(ctx, h.Outbox, h.Encoder, &record.EventRecorder); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("payout advanced", "booking_id", record.BookingID, "action", h.Action, "status", record.Status)
	}
	return &AdvanceResult{Payout: dto.MapPayout(record)}, nil
}

func (h *AdvanceHandler) mirrorBookingStatus(ctx context.Context, unit uow.UnitOfWork, record *domainpayout.Record) error {
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(record.BookingID))
	if err != nil {
		return err
	}
	if b.PayoutStatus == record.Status {
		return nil
	}
	b.PayoutStatus = record.Status
	return unit.Bookings().Save(ctx, b)
}

func drainEvents(ctx context.Context, box outbox.Outbox, encoder outbox.EventEncoder, rec *events.EventRecorder) error {
	pending := rec.PendingEvents()
	rec.ClearEvents()
	return outbox.RecordDomainEvents(ctx, box, encoder, pending)
}

type ByBookingQuery struct {
	BookingID string
}

func (q ByBookingQuery) Key() string { return payoutByIDKey }

type ByBookingHandler struct {
	Factory uow.UoWFactory
}

func (h *ByBookingHandler) Handle(ctx context.Context, query ByBookingQuery) (*dto.PayoutView, error) {
	bookingID := strings.TrimSpace(query.BookingID)
	if bookingID == "" {
		return nil, ErrBookingIDRequired
	}
	unit, execCtx, release, err := support.BeginReadOnlyUnit(ctx, h.Factory)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	record, err := unit.Payouts().ByBooking(execCtx, bookingID)
	if err != nil {
		return nil, err
	}
	view := dto.MapPayout(record)
	return &view, nil
}

// DueQuery lists pending payouts whose scheduled date has passed, for the
// operator queue.
type DueQuery struct {
	Before time.Time
}

func (q DueQuery) Key() string { return payoutsDueKey }

type DueResult struct {
	Items []dto.PayoutView `json:"items"`
	Total int              `json:"total"`
}

type DueHandler struct {
	Factory uow.UoWFactory
}

func (h *DueHandler) Handle(ctx context.Context, query DueQuery) (*DueResult, error) {
	before := query.Before
	if before.IsZero() {
		before = time.Now().UTC()
	}
	unit, execCtx, release, err := support.BeginReadOnlyUnit(ctx, h.Factory)
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}

	records, err := unit.Payouts().ListDue(execCtx, before)
	if err != nil {
		return nil, err
	}
	out := &DueResult{Items: make([]dto.PayoutView, 0, len(records)), Total: len(records)}
	for _, r := range records {
		out.Items = append(out.Items, dto.MapPayout(r))
	}
	return out, nil
}

var _ commands.Handler[AdvanceCommand, *AdvanceResult] = (*AdvanceHandler)(nil)
var _ queries.Handler[ByBookingQuery, *dto.PayoutView] = (*ByBookingHandler)(nil)
var _ queries.Handler[DueQuery, *DueResult] = (*DueHandler)(nil)
