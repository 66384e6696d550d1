package policies

import (
	"context"

	"staybook/internal/domain/shared/money"
)

// PaymentsPort is the seam to the payment collaborator. The core computes
// refund entitlements; executing them against a gateway happens behind this
// port, after the transition has committed.
type PaymentsPort interface {
	IssueRefund(ctx context.Context, bookingID string, amount money.Money, percentage int) error
}
