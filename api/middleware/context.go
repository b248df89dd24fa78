package middleware

import (
	"context"

	"github.com/angelmondragon/driveaway-backend/internal/orders"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the authenticated actor seeded by Auth.
func ActorFromContext(ctx context.Context) (orders.Actor, bool) {
	if ctx == nil {
		return orders.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(orders.Actor)
	return actor, ok
}

// WithActor injects an actor into the context. Handler tests use it to
// bypass token verification.
func WithActor(ctx context.Context, actor orders.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
