package payout_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payoutapp "staybook/internal/app/handlers/payout"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayout "staybook/internal/domain/payout"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

type fixture struct {
	factory  memory.Factory
	bookings *memory.BookingRepository
	payouts  *memory.PayoutRepository
	outbox   *memory.Outbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bookings: memory.NewBookingRepository(),
		payouts:  memory.NewPayoutRepository(),
		outbox:   memory.NewOutbox(),
	}
	f.factory = memory.Factory{
		BookingRepo:  f.bookings,
		PropertyRepo: memory.NewPropertyRepository(),
		PayoutRepo:   f.payouts,
	}
	return f
}

func (f *fixture) ambient(t *testing.T) context.Context {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return uow.ContextWithUnitOfWork(context.Background(), unit)
}

func (f *fixture) seed(t *testing.T) *domainpayout.Record {
	t.Helper()
	ctx := context.Background()
	checkIn := time.Date(2026, 6, 10, 14, 0, 0, 0, time.UTC)
	dr, err := domainrange.New(checkIn, checkIn.AddDate(0, 0, 4))
	require.NoError(t, err)
	price, err := domainpricing.Compute(domainpricing.Input{
		NightlyRate:     decimal.RequireFromString("1500"),
		Nights:          dr.Nights(),
		CleaningFee:     decimal.RequireFromString("350"),
		ServiceFeeGuest: decimal.RequireFromString("450"),
		ServiceFeeHost:  decimal.RequireFromString("250"),
		VATRatePercent:  decimal.RequireFromString("15"),
		Currency:        "SAR",
	})
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         "bk-1",
		Reference:  "BK-TEST00001",
		GuestID:    "guest-1",
		HostID:     "host-1",
		PropertyID: "prop-1",
		Range:      dr,
		Guests:     domainbooking.GuestCounts{Adults: 2},
		Type:       domainbooking.TypeInstant,
		Policy:     domainbooking.PolicyModerate,
		Pricing:    price,
		CreatedAt:  checkIn.AddDate(0, 0, -20),
	})
	require.NoError(t, err)
	b.Status = domainbooking.StatusCompleted
	b.PayoutStatus = domainpayout.StatusPending
	b.ClearEvents()
	require.NoError(t, f.bookings.Save(ctx, b))

	record, err := domainpayout.Schedule("bk-1", money.Money{Amount: price.HostPayout, Currency: "SAR"}, dr.CheckOut.AddDate(0, 0, 3), time.Now().UTC())
	require.NoError(t, err)
	record.ClearEvents()
	require.NoError(t, f.payouts.Save(ctx, record))
	return record
}

func TestAdvanceWalksHappyPath(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	begin := &payoutapp.AdvanceHandler{Action: "begin", Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := begin.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "begin"})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayout.StatusProcessing), result.Payout.Status)

	settle := &payoutapp.AdvanceHandler{Action: "settle", Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err = settle.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "settle"})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayout.StatusCompleted), result.Payout.Status)
	require.NotNil(t, result.Payout.CompletedAt)

	stored, err := f.bookings.ByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainpayout.StatusCompleted, stored.PayoutStatus)

	names := make([]string, 0)
	for _, rec := range f.outbox.Records() {
		names = append(names, rec.Name)
	}
	assert.Contains(t, names, "payout.settled")
}

func TestAdvanceFailRequiresReason(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	begin := &payoutapp.AdvanceHandler{Action: "begin"}
	_, err := begin.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "begin"})
	require.NoError(t, err)

	fail := &payoutapp.AdvanceHandler{Action: "fail"}
	_, err = fail.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "fail"})
	assert.ErrorIs(t, err, domainpayout.ErrReasonRequired)

	result, err := fail.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "fail", Reason: "account closed"})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayout.StatusFailed), result.Payout.Status)
	assert.Equal(t, "account closed", result.Payout.FailureReason)

	stored, err := f.bookings.ByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainpayout.StatusFailed, stored.PayoutStatus)
}

func TestAdvanceRetryOnlyFromFailed(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	retry := &payoutapp.AdvanceHandler{Action: "retry"}
	_, err := retry.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "retry"})
	var invalid *domainpayout.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "retry", invalid.Action)

	begin := &payoutapp.AdvanceHandler{Action: "begin"}
	_, err = begin.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "begin"})
	require.NoError(t, err)
	fail := &payoutapp.AdvanceHandler{Action: "fail"}
	_, err = fail.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "fail", Reason: "bounced"})
	require.NoError(t, err)

	result, err := retry.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "bk-1", Action: "retry"})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayout.StatusProcessing), result.Payout.Status)
	assert.Empty(t, result.Payout.FailureReason)
}

func TestAdvanceUnknownBooking(t *testing.T) {
	f := newFixture(t)
	begin := &payoutapp.AdvanceHandler{Action: "begin"}
	_, err := begin.Handle(f.ambient(t), payoutapp.AdvanceCommand{BookingID: "missing", Action: "begin"})
	assert.ErrorIs(t, err, domainpayout.ErrPayoutNotFound)
}

func TestDueQueryListsOnlyRipePending(t *testing.T) {
	f := newFixture(t)
	record := f.seed(t)

	due := &payoutapp.DueHandler{Factory: f.factory}
	result, err := due.Handle(context.Background(), payoutapp.DueQuery{Before: record.ScheduledFor.Add(time.Hour)})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "bk-1", result.Items[0].BookingID)

	early, err := due.Handle(context.Background(), payoutapp.DueQuery{Before: record.ScheduledFor.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, early.Total)
}

func TestByBookingQuery(t *testing.T) {
	f := newFixture(t)
	record := f.seed(t)

	h := &payoutapp.ByBookingHandler{Factory: f.factory}
	view, err := h.Handle(context.Background(), payoutapp.ByBookingQuery{BookingID: "bk-1"})
	require.NoError(t, err)
	assert.Equal(t, record.Amount.Amount.String(), view.Amount)
	assert.Equal(t, "SAR", view.Currency)

	_, err = h.Handle(context.Background(), payoutapp.ByBookingQuery{BookingID: "other"})
	assert.ErrorIs(t, err, domainpayout.ErrPayoutNotFound)
}
