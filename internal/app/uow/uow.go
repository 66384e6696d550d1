package uow

import (
	"context"
	"errors"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/payout"
)

// ErrUnitOfWorkMissing is returned by handlers dispatched outside the
// transaction middleware, which is the only place units are opened.
var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

// UnitOfWork coordinates repositories inside a transaction boundary, so that
// a booking transition and its payout record are read-modify-written
// atomically: two racing transitions cannot both commit.
type UnitOfWork interface {
	Bookings() booking.Repository
	Properties() catalog.Repository
	Payouts() payout.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

type ctxKey struct{}

// ContextWithUnitOfWork makes the open unit ambient for the dispatched
// handler; a booking transition and its payout write then share one boundary.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

// FromContext retrieves the ambient unit of work, if one is open.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}
