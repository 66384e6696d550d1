package booking

import (
	"context"

	"staybook/internal/app/outbox"
	"staybook/internal/domain/shared/events"
)

func drainEvents(ctx context.Context, box outbox.Outbox, encoder outbox.EventEncoder, rec *events.EventRecorder) error {
	pending := rec.PendingEvents()
	rec.ClearEvents()
	return outbox.RecordDomainEvents(ctx, box, encoder, pending)
}
