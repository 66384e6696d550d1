package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
	domainpayout "staybook/internal/domain/payout"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func testBooking(t *testing.T, id, guestID string, createdAt time.Time) *domainbooking.Booking {
	t.Helper()
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
		ID:         domainbooking.BookingID(id),
		Reference:  "BK-" + id,
		GuestID:    guestID,
		HostID:     "host-1",
		PropertyID: "prop-1",
		Range:      dr,
		Guests:     domainbooking.GuestCounts{Adults: 2},
		Type:       domainbooking.TypeInstant,
		Policy:     domainbooking.PolicyModerate,
		Pricing:    price,
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
	return b
}

func TestBookingRepositoryDoesNotPersistPendingEvents(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	b := testBooking(t, "bk-1", "guest-1", time.Now().UTC())
	require.NotEmpty(t, b.PendingEvents())

	require.NoError(t, repo.Save(ctx, b))
	// The caller keeps its recorded events until it drains them itself.
	assert.NotEmpty(t, b.PendingEvents())

	loaded, err := repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Empty(t, loaded.PendingEvents())
}

func TestPayoutRepositoryDoesNotPersistPendingEvents(t *testing.T) {
	repo := NewPayoutRepository()
	ctx := context.Background()
	amount := money.Money{Amount: decimal.RequireFromString("100"), Currency: "SAR"}
	record, err := domainpayout.Schedule("bk-1", amount, time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)
	require.NotEmpty(t, record.PendingEvents())

	require.NoError(t, repo.Save(ctx, record))
	loaded, err := repo.ByBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Empty(t, loaded.PendingEvents())
}

func TestBookingRepositoryVersionBumpAndIsolation(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	b := testBooking(t, "bk-1", "guest-1", time.Now().UTC())

	require.NoError(t, repo.Save(ctx, b))
	assert.Equal(t, int64(1), b.Version)

	loaded, err := repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	// Mutating the returned aggregate must not leak into the store.
	loaded.Status = domainbooking.StatusCompleted
	again, err := repo.ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, again.Status)

	_, err = repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestBookingRepositoryListByGuestNewestFirst(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repo.Save(ctx, testBooking(t, "bk-old", "guest-1", now.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, testBooking(t, "bk-new", "guest-1", now)))
	require.NoError(t, repo.Save(ctx, testBooking(t, "bk-other", "guest-2", now)))

	list, err := repo.ListByGuest(ctx, "guest-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domainbooking.BookingID("bk-new"), list[0].ID)
	assert.Equal(t, domainbooking.BookingID("bk-old"), list[1].ID)

	_, err = repo.ListByGuest(ctx, "  ")
	assert.Error(t, err)
}

func TestPropertyRepository(t *testing.T) {
	repo := NewPropertyRepository()
	ctx := context.Background()
	property := &domaincatalog.Property{
		ID:                 "prop-1",
		Host:               "host-1",
		Title:              "Corniche Family Villa",
		GuestsLimit:        8,
		NightlyRate:        decimal.RequireFromString("2400"),
		VATRatePercent:     decimal.RequireFromString("15"),
		Currency:           "SAR",
		CancellationPolicy: "FLEXIBLE",
		State:              domaincatalog.PropertyActive,
	}
	require.NoError(t, repo.Save(ctx, property))

	_, err := repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, domaincatalog.ErrPropertyNotFound)

	byHost, err := repo.ListByHost(ctx, "host-1")
	require.NoError(t, err)
	require.Len(t, byHost, 1)
	assert.Equal(t, "Corniche Family Villa", byHost[0].Title)
}

func TestPayoutRepositoryRejectsSecondSchedule(t *testing.T) {
	repo := NewPayoutRepository()
	ctx := context.Background()
	amount := money.Money{Amount: decimal.RequireFromString("5900"), Currency: "SAR"}
	scheduledFor := time.Now().UTC().Add(72 * time.Hour)

	first, err := domainpayout.Schedule("bk-1", amount, scheduledFor, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	duplicate, err := domainpayout.Schedule("bk-1", amount, scheduledFor.Add(time.Hour), time.Now().UTC())
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, duplicate), domainpayout.ErrAlreadyScheduled)

	// Updating the already-persisted record is still allowed.
	require.NoError(t, first.Begin(time.Now().UTC()))
	require.NoError(t, repo.Save(ctx, first))
}

func TestPayoutRepositoryListDue(t *testing.T) {
	repo := NewPayoutRepository()
	ctx := context.Background()
	now := time.Now().UTC()
	amount := money.Money{Amount: decimal.RequireFromString("100"), Currency: "SAR"}

	ripe, err := domainpayout.Schedule("bk-ripe", amount, now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, ripe))

	future, err := domainpayout.Schedule("bk-future", amount, now.Add(48*time.Hour), now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, future))

	processing, err := domainpayout.Schedule("bk-processing", amount, now.Add(-2*time.Hour), now)
	require.NoError(t, err)
	require.NoError(t, processing.Begin(now))
	require.NoError(t, repo.Save(ctx, processing))

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "bk-ripe", due[0].BookingID)
}
