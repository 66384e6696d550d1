package schedule

import (
	"context"
	"time"
)

// Scheduler enqueues a named job for later execution; the payout settlement
// batch is driven through it.
type Scheduler interface {
	Schedule(ctx context.Context, name string, payload any, runAt time.Time) error
}
