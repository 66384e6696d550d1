package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
	domainpayout "staybook/internal/domain/payout"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

type fixture struct {
	factory    memory.Factory
	properties *memory.PropertyRepository
	bookings   *memory.BookingRepository
	payouts    *memory.PayoutRepository
	outbox     *memory.Outbox
	payments   *memory.Payments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		properties: memory.NewPropertyRepository(),
		bookings:   memory.NewBookingRepository(),
		payouts:    memory.NewPayoutRepository(),
		outbox:     memory.NewOutbox(),
		payments:   memory.NewPayments(),
	}
	f.factory = memory.Factory{
		BookingRepo:  f.bookings,
		PropertyRepo: f.properties,
		PayoutRepo:   f.payouts,
	}
	return f
}

// ambient returns a context carrying an open unit of work, the way the
// transaction middleware dispatches commands.
func (f *fixture) ambient(t *testing.T) context.Context {
	t.Helper()
	unit, err := f.factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return uow.ContextWithUnitOfWork(context.Background(), unit)
}

func (f *fixture) seedProperty(t *testing.T, id string, instant bool, policy string) *domaincatalog.Property {
	t.Helper()
	property := &domaincatalog.Property{
		ID:                 domaincatalog.PropertyID(id),
		Host:               "host-1",
		Title:              "Marina View Studio",
		City:               "Dubai",
		Country:            "AE",
		GuestsLimit:        4,
		InstantBook:        instant,
		NightlyRate:        decimal.RequireFromString("980"),
		CleaningFee:        decimal.RequireFromString("200"),
		ServiceFeeGuest:    decimal.RequireFromString("167.5"),
		ServiceFeeHost:     decimal.RequireFromString("125"),
		VATRatePercent:     decimal.RequireFromString("5"),
		Currency:           "AED",
		CancellationPolicy: policy,
		State:              domaincatalog.PropertyActive,
	}
	require.NoError(t, f.properties.Save(context.Background(), property))
	return property
}

func (f *fixture) seedBooking(t *testing.T, property *domaincatalog.Property, checkIn, checkOut time.Time, kind domainbooking.BookingType) *domainbooking.Booking {
	t.Helper()
	dr, err := domainrange.New(checkIn, checkOut)
	require.NoError(t, err)
	price, err := domainpricing.QuoteForStay(property, dr)
	require.NoError(t, err)
	policy, err := domainbooking.ParsePolicyType(property.CancellationPolicy)
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         "bk-1",
		Reference:  "BK-TEST00001",
		GuestID:    "guest-1",
		HostID:     string(property.Host),
		PropertyID: property.ID,
		Range:      dr,
		Guests:     domainbooking.GuestCounts{Adults: 2},
		Type:       kind,
		Policy:     policy,
		Pricing:    price,
		CreatedAt:  time.Now().UTC().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, f.bookings.Save(context.Background(), b))
	return b
}

func futureStay() (time.Time, time.Time) {
	checkIn := time.Now().UTC().AddDate(0, 0, 30).Truncate(24 * time.Hour)
	return checkIn, checkIn.AddDate(0, 0, 4)
}

func pastStay() (time.Time, time.Time) {
	checkOut := time.Now().UTC().AddDate(0, 0, -2).Truncate(24 * time.Hour)
	return checkOut.AddDate(0, 0, -4), checkOut
}

func TestCreateBookingInstantConfirms(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "prop-1", true, "MODERATE")
	checkIn, checkOut := futureStay()

	h := &bookingapp.CreateBookingHandler{UoWFactory: f.factory, Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := h.Handle(context.Background(), bookingapp.CreateBookingCommand{
		CommandID:  "cmd-1",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), result.Status)
	assert.Equal(t, "BK-CMD1", result.Reference)
	assert.Equal(t, "AED", result.Currency)

	stored, err := f.bookings.ByID(context.Background(), domainbooking.BookingID(result.BookingID))
	require.NoError(t, err)
	assert.Equal(t, domainbooking.TypeInstant, stored.Type)
	require.NotNil(t, stored.ConfirmedAt)

	names := make([]string, 0)
	for _, rec := range f.outbox.Records() {
		names = append(names, rec.Name)
	}
	assert.Contains(t, names, "booking.requested")
	assert.Contains(t, names, "booking.confirmed")
}

func TestEventsPublishedOncePerCommand(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "prop-1", false, "MODERATE")
	checkIn, checkOut := futureStay()

	create := &bookingapp.CreateBookingHandler{UoWFactory: f.factory, Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := create.Handle(context.Background(), bookingapp.CreateBookingCommand{
		CommandID:  "cmd-once",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     1,
	})
	require.NoError(t, err)

	// The accept command loads the stored booking; events drained by the
	// create command must not ride along and reach the outbox a second time.
	accept := &bookingapp.AcceptBookingHandler{Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	_, err = accept.Handle(f.ambient(t), bookingapp.AcceptBookingCommand{HostID: "host-1", BookingID: result.BookingID})
	require.NoError(t, err)

	requested, confirmed := 0, 0
	for _, rec := range f.outbox.Records() {
		switch rec.Name {
		case "booking.requested":
			requested++
		case "booking.confirmed":
			confirmed++
		}
	}
	assert.Equal(t, 1, requested)
	assert.Equal(t, 1, confirmed)
}

func TestCreateBookingRequestStaysPending(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "prop-1", false, "MODERATE")
	checkIn, checkOut := futureStay()

	h := &bookingapp.CreateBookingHandler{UoWFactory: f.factory, Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := h.Handle(context.Background(), bookingapp.CreateBookingCommand{
		CommandID:  "cmd-2",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusPending), result.Status)
}

func TestCreateBookingRejectsInactiveProperty(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "MODERATE")
	property.State = domaincatalog.PropertySuspended
	require.NoError(t, f.properties.Save(context.Background(), property))
	checkIn, checkOut := futureStay()

	h := &bookingapp.CreateBookingHandler{UoWFactory: f.factory}
	_, err := h.Handle(context.Background(), bookingapp.CreateBookingCommand{
		CommandID:  "cmd-3",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     1,
	})
	assert.ErrorIs(t, err, domaincatalog.ErrPropertyInactive)
}

func TestCreateBookingRejectsOversizedParty(t *testing.T) {
	f := newFixture(t)
	f.seedProperty(t, "prop-1", true, "MODERATE")
	checkIn, checkOut := futureStay()

	h := &bookingapp.CreateBookingHandler{UoWFactory: f.factory}
	_, err := h.Handle(context.Background(), bookingapp.CreateBookingCommand{
		CommandID:  "cmd-4",
		PropertyID: "prop-1",
		GuestID:    "guest-1",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     3,
		Children:   2,
	})
	assert.ErrorIs(t, err, bookingapp.ErrGuestsExceedLimit)
}

func TestAcceptBookingRequiresOwningHost(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", false, "MODERATE")
	checkIn, checkOut := futureStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeRequest)

	h := &bookingapp.AcceptBookingHandler{Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	_, err := h.Handle(f.ambient(t), bookingapp.AcceptBookingCommand{HostID: "someone-else", BookingID: string(b.ID)})
	assert.ErrorIs(t, err, bookingapp.ErrBookingNotOwned)

	result, err := h.Handle(f.ambient(t), bookingapp.AcceptBookingCommand{HostID: "host-1", BookingID: string(b.ID)})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), result.Status)
}

func TestCancelBookingByGuestIssuesRefund(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "FLEXIBLE")
	checkIn, checkOut := futureStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeInstant)

	h := &bookingapp.CancelBookingHandler{Payments: f.payments, Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := h.Handle(f.ambient(t), bookingapp.CancelBookingCommand{
		BookingID: string(b.ID),
		Actor:     domainbooking.ActorGuest,
		ActorID:   "guest-1",
		Reason:    "change of plans",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCancelledByGuest), result.Status)
	assert.Equal(t, 100, result.RefundPercent)
	assert.Equal(t, b.Pricing.TotalPrice.String(), result.RefundAmount)

	refunds := f.payments.Refunds()
	require.Len(t, refunds, 1)
	assert.Equal(t, string(b.ID), refunds[0].BookingID)
	assert.True(t, refunds[0].Amount.Equal(money.Money{Amount: b.Pricing.TotalPrice, Currency: "AED"}))
}

func TestCancelBookingRejectsForeignGuest(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "FLEXIBLE")
	checkIn, checkOut := futureStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeInstant)

	h := &bookingapp.CancelBookingHandler{Payments: f.payments}
	_, err := h.Handle(f.ambient(t), bookingapp.CancelBookingCommand{
		BookingID: string(b.ID),
		Actor:     domainbooking.ActorGuest,
		ActorID:   "guest-2",
	})
	assert.ErrorIs(t, err, bookingapp.ErrNotBookingGuest)
}

func TestCancelBookingLateStrictKeepsEverything(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "STRICT")
	checkIn := time.Now().UTC().AddDate(0, 0, 2)
	b := f.seedBooking(t, property, checkIn, checkIn.AddDate(0, 0, 4), domainbooking.TypeInstant)

	h := &bookingapp.CancelBookingHandler{Payments: f.payments, Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := h.Handle(f.ambient(t), bookingapp.CancelBookingCommand{
		BookingID: string(b.ID),
		Actor:     domainbooking.ActorGuest,
		ActorID:   "guest-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RefundPercent)
	assert.Empty(t, f.payments.Refunds())
}

func TestCompleteBookingSchedulesPayoutOnce(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "MODERATE")
	checkIn, checkOut := pastStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeInstant)

	h := &bookingapp.CompleteBookingHandler{PayoutDelayDays: 3, Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := h.Handle(f.ambient(t), bookingapp.CompleteBookingCommand{BookingID: string(b.ID)})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCompleted), result.Status)
	assert.True(t, result.PayoutScheduled)

	record, err := f.payouts.ByBooking(context.Background(), string(b.ID))
	require.NoError(t, err)
	assert.Equal(t, domainpayout.StatusPending, record.Status)
	assert.Equal(t, b.Pricing.HostPayout.String(), record.Amount.Amount.String())
	assert.True(t, record.ScheduledFor.Equal(checkOut.AddDate(0, 0, 3)))

	stored, err := f.bookings.ByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainpayout.StatusPending, stored.PayoutStatus)

	// A replayed completion must not mint a second payout record.
	_, err = h.Handle(f.ambient(t), bookingapp.CompleteBookingCommand{BookingID: string(b.ID)})
	var illegal *domainbooking.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal)
	again, err := f.payouts.ByBooking(context.Background(), string(b.ID))
	require.NoError(t, err)
	assert.Equal(t, record.ScheduledFor, again.ScheduledFor)
}

func TestCompleteBookingBeforeCheckoutFails(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "MODERATE")
	checkIn, checkOut := futureStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeInstant)

	h := &bookingapp.CompleteBookingHandler{PayoutDelayDays: 3}
	_, err := h.Handle(f.ambient(t), bookingapp.CompleteBookingCommand{BookingID: string(b.ID)})
	var illegal *domainbooking.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	_, err = f.payouts.ByBooking(context.Background(), string(b.ID))
	assert.ErrorIs(t, err, domainpayout.ErrPayoutNotFound)
}

func TestMarkNoShowSchedulesNoPayout(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "MODERATE")
	checkIn := time.Now().UTC().AddDate(0, 0, -1)
	b := f.seedBooking(t, property, checkIn, checkIn.AddDate(0, 0, 4), domainbooking.TypeInstant)

	h := &bookingapp.MarkNoShowHandler{Outbox: f.outbox, Encoder: outbox.JSONEventEncoder{}}
	result, err := h.Handle(f.ambient(t), bookingapp.MarkNoShowCommand{HostID: "host-1", BookingID: string(b.ID)})
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusNoShow), result.Status)
	_, err = f.payouts.ByBooking(context.Background(), string(b.ID))
	assert.ErrorIs(t, err, domainpayout.ErrPayoutNotFound)
}

func TestGuestBookingsQuery(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "MODERATE")
	checkIn, checkOut := futureStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeInstant)

	h := &bookingapp.GuestBookingsHandler{Factory: f.factory}
	collection, err := h.Handle(context.Background(), bookingapp.GuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	require.Equal(t, 1, collection.Total)
	assert.Equal(t, string(b.ID), collection.Items[0].ID)
	assert.Equal(t, b.Pricing.TotalPrice.String(), collection.Items[0].Pricing.TotalPrice)

	empty, err := h.Handle(context.Background(), bookingapp.GuestBookingsQuery{GuestID: "guest-2"})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestRefundPreviewDoesNotTouchBooking(t *testing.T) {
	f := newFixture(t)
	property := f.seedProperty(t, "prop-1", true, "STRICT")
	checkIn, checkOut := futureStay()
	b := f.seedBooking(t, property, checkIn, checkOut, domainbooking.TypeInstant)

	h := &bookingapp.RefundPreviewHandler{Factory: f.factory}
	preview, err := h.Handle(context.Background(), bookingapp.RefundPreviewQuery{
		BookingID: string(b.ID),
		At:        checkIn.AddDate(0, 0, -10),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, preview.RefundPercentage)
	assert.Equal(t, "STRICT", preview.Policy)

	stored, err := f.bookings.ByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, stored.Status)
}
