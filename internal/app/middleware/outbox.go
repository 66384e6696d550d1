package middleware

import (
	"context"

	"staybook/internal/app/commands"
)

// Flusher is an outbox that needs an explicit flush after a successful
// dispatch (the in-memory store; the Mongo store commits with the unit of
// work and its Flush is a no-op).
type Flusher interface {
	Flush(ctx context.Context) error
}

func OutboxFlush(box Flusher) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
