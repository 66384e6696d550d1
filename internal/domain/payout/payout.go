package payout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrPayoutNotFound   = errors.New("payout: not found")
	ErrAlreadyScheduled = errors.New("payout: booking already has a payout record")
	ErrReasonRequired   = errors.New("payout: failure reason required")
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// InvalidTransitionError rejects a payout transition that the status graph
// does not allow.
type InvalidTransitionError struct {
	Action string
	Status Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("payout: cannot %s from status %q", e.Action, e.Status)
}

// Record tracks one host payout from scheduling through settlement. FAILED is
// not terminal: a failed transfer is retried only by an explicit re-entry into
// PROCESSING, never automatically.
type Record struct {
	BookingID     string
	Amount        money.Money
	Status        Status
	ScheduledFor  time.Time
	CompletedAt   *time.Time
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByBooking(ctx context.Context, bookingID string) (*Record, error)
	Save(ctx context.Context, record *Record) error
	ListDue(ctx context.Context, before time.Time) ([]*Record, error)
}

// Schedule creates a PENDING payout record. The scheduled date is check-out
// plus the platform's settlement offset, which the caller supplies.
func Schedule(bookingID string, amount money.Money, scheduledFor, now time.Time) (*Record, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, errors.New("payout: booking id required")
	}
	if amount.Currency == "" {
		return nil, money.ErrInvalidCurrency
	}
	if amount.IsNegative() {
		return nil, errors.New("payout: amount must not be negative")
	}
	now = now.UTC()
	r := &Record{
		BookingID:    bookingID,
		Amount:       amount,
		Status:       StatusPending,
		ScheduledFor: scheduledFor.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.Record(PayoutScheduled{BookingID: r.BookingID, Amount: r.Amount, ScheduledFor: r.ScheduledFor, At: now})
	return r, nil
}

// Begin moves a pending payout into processing when the transfer starts.
func (r *Record) Begin(now time.Time) error {
	if r.Status != StatusPending {
		return &InvalidTransitionError{Action: "begin", Status: r.Status}
	}
	r.Status = StatusProcessing
	r.UpdatedAt = now.UTC()
	return nil
}

// Settle marks the funds as settled.
func (r *Record) Settle(now time.Time) error {
	if r.Status != StatusProcessing {
		return &InvalidTransitionError{Action: "settle", Status: r.Status}
	}
	now = now.UTC()
	r.Status = StatusCompleted
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.Record(PayoutSettled{BookingID: r.BookingID, Amount: r.Amount, At: now})
	return nil
}

// Fail records a failed transfer. Failure is an expected business outcome
// (a returned transfer, an expired account), represented as state rather than
// as an exception.
func (r *Record) Fail(reason string, now time.Time) error {
	if r.Status != StatusProcessing {
		return &InvalidTransitionError{Action: "fail", Status: r.Status}
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	now = now.UTC()
	r.Status = StatusFailed
	r.FailureReason = reason
	r.UpdatedAt = now
	r.Record(PayoutFailed{BookingID: r.BookingID, Amount: r.Amount, Reason: reason, At: now})
	return nil
}

// Retry re-enters processing after a failure; this is the only re-entrant
// edge in the payout graph.
func (r *Record) Retry(now time.Time) error {
	if r.Status != StatusFailed {
		return &InvalidTransitionError{Action: "retry", Status: r.Status}
	}
	r.Status = StatusProcessing
	r.FailureReason = ""
	r.UpdatedAt = now.UTC()
	return nil
}
