package memory

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domaincatalog "staybook/internal/domain/catalog"
	domainpayout "staybook/internal/domain/payout"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	BookingRepo  domainbooking.Repository
	PropertyRepo domaincatalog.Repository
	PayoutRepo   domainpayout.Repository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight transaction boundary. No isolation is provided but
// the abstraction matches the application ports.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.BookingRepo == nil || f.PropertyRepo == nil || f.PayoutRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		bookings:   f.BookingRepo,
		properties: f.PropertyRepo,
		payouts:    f.PayoutRepo,
	}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	bookings   domainbooking.Repository
	properties domaincatalog.Repository
	payouts    domainpayout.Repository
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) Properties() domaincatalog.Repository {
	return u.properties
}

func (u *Unit) Payouts() domainpayout.Repository {
	return u.payouts
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}
