package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/driveaway-backend/pkg/redis"
)

const (
	markProcessing = "processing"
	markDone       = "done"

	// maxClaimTTL bounds how long a crashed delivery blocks a redelivery.
	maxClaimTTL = 2 * time.Minute
)

// IdempotencyGuard remembers Stripe event ids in Redis so redeliveries skip
// the database. An event is first claimed with a short TTL and only marked
// done, for the full TTL, once it was applied. It is a fast path; the order
// service stays idempotent without it.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	scope    string
	claimTTL time.Duration
	doneTTL  time.Duration
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	case scope == "":
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, scope: scope, claimTTL: min(ttl, maxClaimTTL), doneTTL: ttl}, nil
}

// Claim reports whether this delivery owns eventID. False means another
// delivery applied it or is applying it right now.
func (g *IdempotencyGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	claimed, err := g.store.SetNX(ctx, g.key(eventID), markProcessing, g.claimTTL)
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return claimed, nil
}

// Complete keeps eventID for the full TTL.
func (g *IdempotencyGuard) Complete(ctx context.Context, eventID string) error {
	if err := g.store.Set(ctx, g.key(eventID), markDone, g.doneTTL); err != nil {
		return fmt.Errorf("complete event %s: %w", eventID, err)
	}
	return nil
}

// Release drops the claim so a redelivery is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	if err := g.store.Del(ctx, g.key(eventID)); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

func (g *IdempotencyGuard) key(eventID string) string {
	return g.store.IdempotencyKey(g.scope, eventID)
}
