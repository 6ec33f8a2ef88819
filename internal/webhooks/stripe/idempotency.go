package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uninote/uninote-backend/pkg/redis"
)

// Stripe retries for up to three days; anything shorter could reprocess.
const minEventTTL = 72 * time.Hour

// IdempotencyGuard records handled Stripe event ids so redeliveries are
// acknowledged without touching purchases again.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

// NewIdempotencyGuard builds a guard; ttl is raised to Stripe's retry horizon
// when shorter.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if ttl < minEventTTL {
		ttl = minEventTTL
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// CheckAndMark claims eventID and reports whether an earlier delivery already
// holds the claim. The stored value is the claim time, for debugging.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, g.now().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return !claimed, nil
}

// Release drops the claim so Stripe's next delivery is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release stripe event %s: %w", eventID, err)
	}
	return nil
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
