package memory

import (
	"context"
	"sync"
	"time"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/money"
)

// RefundEntry is one refund instruction recorded by the in-memory gateway.
type RefundEntry struct {
	BookingID  string
	Amount     money.Money
	Percentage int
	IssuedAt   time.Time
}

// Payments is a payment gateway stand-in that records refund instructions
// instead of moving money. Dev and test wiring only.
type Payments struct {
	mu      sync.Mutex
	refunds []RefundEntry
}

func NewPayments() *Payments {
	return &Payments{}
}

func (p *Payments) IssueRefund(ctx context.Context, bookingID string, amount money.Money, percentage int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, RefundEntry{
		BookingID:  bookingID,
		Amount:     amount,
		Percentage: percentage,
		IssuedAt:   time.Now().UTC(),
	})
	return nil
}

// Refunds returns a snapshot of everything issued so far.
func (p *Payments) Refunds() []RefundEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RefundEntry, len(p.refunds))
	copy(out, p.refunds)
	return out
}

var _ policies.PaymentsPort = (*Payments)(nil)
