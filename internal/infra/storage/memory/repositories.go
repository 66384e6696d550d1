package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
	domainpayout "staybook/internal/domain/payout"
)

// PropertyRepository is an in-memory implementation for dev and tests.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[domaincatalog.PropertyID]*domaincatalog.Property
}

// NewPropertyRepository builds an empty repository.
func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{
		items: make(map[domaincatalog.PropertyID]*domaincatalog.Property),
	}
}

// ByID returns a property or catalog.ErrPropertyNotFound.
func (r *PropertyRepository) ByID(ctx context.Context, id domaincatalog.PropertyID) (*domaincatalog.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	property, ok := r.items[id]
	if !ok {
		return nil, domaincatalog.ErrPropertyNotFound
	}
	clone := *property
	return &clone, nil
}

// Save stores/updates a property entry.
func (r *PropertyRepository) Save(ctx context.Context, property *domaincatalog.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *property
	r.items[property.ID] = &clone
	return nil
}

// ListByHost returns the host's properties ordered by title.
func (r *PropertyRepository) ListByHost(ctx context.Context, host domaincatalog.HostID) ([]*domaincatalog.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domaincatalog.Property, 0)
	for _, property := range r.items {
		if property.Host == host {
			clone := *property
			matches = append(matches, &clone)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Title < matches[j].Title
	})
	return matches, nil
}

// BookingRepository stores bookings in memory, bumping the version on every
// save the way the document store does.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

// NewBookingRepository builds an empty booking repo.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

// ByID fetches a booking.
func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

// Save stores the current booking state.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.Version++
	r.items[b.ID] = cloneBooking(b)
	return nil
}

// cloneBooking copies the aggregate for storage or hand-out. Pending events
// belong to the in-flight command that recorded them, not to the persisted
// state; a stored or reloaded copy must start with an empty recorder or the
// same events would reach the outbox once per subsequent command.
func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	clone := *b
	clone.ClearEvents()
	return &clone
}

// ListByGuest returns the guest's bookings, newest first.
func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	id := strings.TrimSpace(guestID)
	if id == "" {
		return nil, errors.New("memory: guest id required")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.GuestID == id {
			matches = append(matches, cloneBooking(b))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

// ListByProperty returns bookings for a property, newest first.
func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID domaincatalog.PropertyID) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if b.PropertyID == propertyID {
			matches = append(matches, cloneBooking(b))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

// PayoutRepository keeps payout records in memory, one per booking.
type PayoutRepository struct {
	mu    sync.RWMutex
	items map[string]*domainpayout.Record
}

// NewPayoutRepository builds an empty payout store.
func NewPayoutRepository() *PayoutRepository {
	return &PayoutRepository{items: make(map[string]*domainpayout.Record)}
}

// ByBooking locates the payout record for a booking.
func (r *PayoutRepository) ByBooking(ctx context.Context, bookingID string) (*domainpayout.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.items[bookingID]
	if !ok {
		return nil, domainpayout.ErrPayoutNotFound
	}
	return cloneRecord(record), nil
}

// Save writes the payout record, rejecting a second record for the same
// booking when the caller holds a stale zero version.
func (r *PayoutRepository) Save(ctx context.Context, record *domainpayout.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[record.BookingID]; ok && record.Version == 0 && existing.Version > 0 {
		return domainpayout.ErrAlreadyScheduled
	}
	record.Version++
	r.items[record.BookingID] = cloneRecord(record)
	return nil
}

// cloneRecord mirrors cloneBooking: persisted copies never carry the pending
// events of the command that produced them.
func cloneRecord(record *domainpayout.Record) *domainpayout.Record {
	clone := *record
	clone.ClearEvents()
	return &clone
}

// ListDue returns pending payouts scheduled at or before the cutoff.
func (r *PayoutRepository) ListDue(ctx context.Context, before time.Time) ([]*domainpayout.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainpayout.Record, 0)
	for _, record := range r.items {
		if record.Status != domainpayout.StatusPending {
			continue
		}
		if record.ScheduledFor.After(before) {
			continue
		}
		matches = append(matches, cloneRecord(record))
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ScheduledFor.Before(matches[j].ScheduledFor)
	})
	return matches, nil
}
