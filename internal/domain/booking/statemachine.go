package booking

import (
	"fmt"
	"time"

	"staybook/internal/domain/shared/money"
)

// Trigger names a lifecycle action requested against a booking.
type Trigger string

const (
	TriggerAccept      Trigger = "accept"
	TriggerDecline     Trigger = "decline"
	TriggerCancel      Trigger = "cancel"
	TriggerComplete    Trigger = "complete"
	TriggerNoShow      Trigger = "no_show"
	TriggerAdminCancel Trigger = "admin_cancel"
)

// Actor identifies who requested a transition. For cancellations the actor
// selects the terminal status the booking lands in.
type Actor string

const (
	ActorGuest  Actor = "guest"
	ActorHost   Actor = "host"
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// IllegalTransitionError names the attempted transition and the status that
// rejected it.
type IllegalTransitionError struct {
	Trigger Trigger
	Status  Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("booking: illegal transition %q from status %q", e.Trigger, e.Status)
}

// Effect is a side-effect request a transition hands back to the caller. The
// state machine never moves money or touches storage itself.
type Effect interface{ effect() }

// SchedulePayout asks the payout collaborator to schedule the host settlement
// once the booking completed.
type SchedulePayout struct {
	BookingID BookingID
	Amount    money.Money
	CheckOut  time.Time
}

// IssueRefund asks the payment collaborator to return part of the guest
// charge after a confirmed-state cancellation.
type IssueRefund struct {
	BookingID  BookingID
	Percentage int
	Amount     money.Money
}

func (SchedulePayout) effect() {}
func (IssueRefund) effect()    {}

// TransitionResult reports the status the booking moved to plus any
// side-effect requests the transition implies.
type TransitionResult struct {
	Status  Status
	Effects []Effect
}

// Transition applies a trigger to the booking, enforcing the legal status
// graph. On success the aggregate is mutated in place, domain events are
// recorded, and the result carries the implied side effects. Every illegal
// source/trigger combination fails with *IllegalTransitionError and leaves
// the booking untouched.
func (b *Booking) Transition(trigger Trigger, actor Actor, reason string, now time.Time) (TransitionResult, error) {
	now = now.UTC()
	switch trigger {
	case TriggerAccept:
		return b.accept(now)
	case TriggerDecline:
		return b.decline(reason, now)
	case TriggerCancel:
		return b.cancel(actor, reason, now)
	case TriggerAdminCancel:
		return b.adminCancel(reason, now)
	case TriggerComplete:
		return b.complete(now)
	case TriggerNoShow:
		return b.markNoShow(now)
	}
	return TransitionResult{}, b.illegal(trigger)
}

func (b *Booking) accept(now time.Time) (TransitionResult, error) {
	if b.Status != StatusPending {
		return TransitionResult{}, b.illegal(TriggerAccept)
	}
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	b.touch(now)
	b.Record(BookingConfirmed{BookingID: b.ID, PropertyID: b.PropertyID, Range: b.Range, Total: b.Pricing.Total(), At: now})
	return TransitionResult{Status: b.Status}, nil
}

func (b *Booking) decline(reason string, now time.Time) (TransitionResult, error) {
	if b.Status != StatusPending {
		return TransitionResult{}, b.illegal(TriggerDecline)
	}
	b.Status = StatusRejected
	b.touch(now)
	b.Record(BookingRejected{BookingID: b.ID, Reason: reason, At: now})
	return TransitionResult{Status: b.Status}, nil
}

func (b *Booking) cancel(actor Actor, reason string, now time.Time) (TransitionResult, error) {
	switch b.Status {
	case StatusPending:
		// Withdrawing an unaccepted request: nothing was charged, so there is
		// no refund to compute. Only the guest can withdraw.
		if actor != ActorGuest {
			return TransitionResult{}, b.illegal(TriggerCancel)
		}
		b.markCancelled(StatusCancelledByGuest, reason, now)
		b.Record(BookingCancelled{BookingID: b.ID, Actor: actor, Reason: reason, Refund: money.Zero(b.Pricing.Currency), At: now})
		return TransitionResult{Status: b.Status}, nil
	case StatusConfirmed:
		if now.After(b.Range.CheckOut) || now.Equal(b.Range.CheckOut) {
			return TransitionResult{}, b.illegal(TriggerCancel)
		}
		var target Status
		switch actor {
		case ActorGuest:
			target = StatusCancelledByGuest
		case ActorHost:
			target = StatusCancelledByHost
		default:
			return TransitionResult{}, b.illegal(TriggerCancel)
		}
		refund, percent := RefundAmount(b.Policy, b.Pricing.Total(), b.Range.CheckIn, now)
		b.markCancelled(target, reason, now)
		b.Record(BookingCancelled{BookingID: b.ID, Actor: actor, Reason: reason, RefundPercent: percent, Refund: refund, At: now})
		return TransitionResult{
			Status:  b.Status,
			Effects: []Effect{IssueRefund{BookingID: b.ID, Percentage: percent, Amount: refund}},
		}, nil
	}
	return TransitionResult{}, b.illegal(TriggerCancel)
}

func (b *Booking) adminCancel(reason string, now time.Time) (TransitionResult, error) {
	switch b.Status {
	case StatusPending:
		b.markCancelled(StatusCancelled, reason, now)
		b.Record(BookingCancelled{BookingID: b.ID, Actor: ActorAdmin, Reason: reason, Refund: money.Zero(b.Pricing.Currency), At: now})
		return TransitionResult{Status: b.Status}, nil
	case StatusConfirmed:
		refund, percent := RefundAmount(b.Policy, b.Pricing.Total(), b.Range.CheckIn, now)
		b.markCancelled(StatusCancelled, reason, now)
		b.Record(BookingCancelled{BookingID: b.ID, Actor: ActorAdmin, Reason: reason, RefundPercent: percent, Refund: refund, At: now})
		return TransitionResult{
			Status:  b.Status,
			Effects: []Effect{IssueRefund{BookingID: b.ID, Percentage: percent, Amount: refund}},
		}, nil
	}
	return TransitionResult{}, b.illegal(TriggerAdminCancel)
}

func (b *Booking) complete(now time.Time) (TransitionResult, error) {
	if b.Status != StatusConfirmed {
		return TransitionResult{}, b.illegal(TriggerComplete)
	}
	if now.Before(b.Range.CheckOut) {
		return TransitionResult{}, b.illegal(TriggerComplete)
	}
	b.Status = StatusCompleted
	b.touch(now)
	b.Record(BookingCompleted{BookingID: b.ID, Payout: b.Pricing.Payout(), At: now})
	return TransitionResult{
		Status:  b.Status,
		Effects: []Effect{SchedulePayout{BookingID: b.ID, Amount: b.Pricing.Payout(), CheckOut: b.Range.CheckOut}},
	}, nil
}

func (b *Booking) markNoShow(now time.Time) (TransitionResult, error) {
	if b.Status != StatusConfirmed {
		return TransitionResult{}, b.illegal(TriggerNoShow)
	}
	if now.Before(b.Range.CheckIn) {
		return TransitionResult{}, b.illegal(TriggerNoShow)
	}
	// Whether a no-show still earns the host a payout is the payout
	// collaborator's call; no SchedulePayout is emitted here.
	b.Status = StatusNoShow
	b.touch(now)
	b.Record(NoShowRecorded{BookingID: b.ID, At: now})
	return TransitionResult{Status: b.Status}, nil
}

func (b *Booking) markCancelled(target Status, reason string, now time.Time) {
	b.Status = target
	b.CancelledAt = &now
	b.CancellationReason = reason
	b.touch(now)
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now
}

func (b *Booking) illegal(trigger Trigger) error {
	return &IllegalTransitionError{Trigger: trigger, Status: b.Status}
}
