package payout

import (
	"time"

	"staybook/internal/domain/shared/money"
)

type PayoutScheduled struct {
	BookingID    string
	Amount       money.Money
	ScheduledFor time.Time
	At           time.Time
}

func (e PayoutScheduled) EventName() string     { return "payout.scheduled" }
func (e PayoutScheduled) AggregateID() string   { return e.BookingID }
func (e PayoutScheduled) OccurredAt() time.Time { return e.At }

type PayoutSettled struct {
	BookingID string
	Amount    money.Money
	At        time.Time
}

func (e PayoutSettled) EventName() string     { return "payout.settled" }
func (e PayoutSettled) AggregateID() string   { return e.BookingID }
func (e PayoutSettled) OccurredAt() time.Time { return e.At }

type PayoutFailed struct {
	BookingID string
	Amount    money.Money
	Reason    string
	At        time.Time
}

func (e PayoutFailed) EventName() string     { return "payout.failed" }
func (e PayoutFailed) AggregateID() string   { return e.BookingID }
func (e PayoutFailed) OccurredAt() time.Time { return e.At }
