package middleware

import (
	"context"

	"staybook/internal/app/commands"
)

// SelfValidating is implemented by commands that can check their own shape
// before reaching a handler.
type SelfValidating interface {
	Validate() error
}

// Validation rejects malformed commands before any unit of work is opened.
func Validation() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if v, ok := cmd.(SelfValidating); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return nextFn(ctx, cmd)
		})
	}
}
