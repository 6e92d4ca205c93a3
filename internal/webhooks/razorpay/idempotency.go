package razorpaywebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-payments/pkg/redis"
)

// Scope namespaces webhook delivery keys in Redis.
const Scope = "razorpay-webhook"

const (
	markerProcessing = "processing"
	markerDone       = "done"

	// DefaultClaimTTL bounds how long a crashed worker can hold a delivery.
	DefaultClaimTTL = 2 * time.Minute
)

// DeliveryState is what a claim found under a delivery key.
type DeliveryState int

const (
	// DeliveryClaimed means the caller owns the delivery and must Complete
	// or Release it.
	DeliveryClaimed DeliveryState = iota
	// DeliveryInFlight means another worker is processing it right now.
	DeliveryInFlight
	// DeliveryDone means a previous delivery was fully applied.
	DeliveryDone
)

// IdempotencyGuard drops redeliveries of a webhook before any business logic
// runs. A delivery is first marked as processing with a short ttl and only
// marked done once it has been applied. It is a fast path only; storage
// uniqueness stays authoritative.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
	scope    string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	claimTTL := DefaultClaimTTL
	if ttl > 0 && ttl < claimTTL {
		claimTTL = ttl
	}
	return &IdempotencyGuard{
		store:    store,
		ttl:      ttl,
		claimTTL: claimTTL,
		scope:    scope,
	}, nil
}

// Claim marks deliveryID as processing unless a marker already exists, in
// which case it reports what that marker says.
func (g *IdempotencyGuard) Claim(ctx context.Context, deliveryID string) (DeliveryState, error) {
	key, err := g.key(deliveryID)
	if err != nil {
		return 0, err
	}
	set, err := g.store.SetNX(ctx, key, markerProcessing, g.claimTTL)
	if err != nil {
		return 0, fmt.Errorf("claim delivery: %w", err)
	}
	if set {
		return DeliveryClaimed, nil
	}
	marker, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// The claim expired between the two calls; let the gateway retry.
		return DeliveryInFlight, nil
	case err != nil:
		return 0, fmt.Errorf("read delivery marker: %w", err)
	case marker == markerProcessing:
		return DeliveryInFlight, nil
	}
	return DeliveryDone, nil
}

// Complete records deliveryID as applied for the guard ttl.
func (g *IdempotencyGuard) Complete(ctx context.Context, deliveryID string) error {
	key, err := g.key(deliveryID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markerDone, g.ttl)
}

// Release drops a claim so a retried delivery is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, deliveryID string) error {
	key, err := g.key(deliveryID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(deliveryID string) (string, error) {
	if deliveryID == "" {
		return "", errors.New("delivery id is required")
	}
	return g.store.IdempotencyKey(g.scope, deliveryID), nil
}

// DeliveryID prefers the gateway event id header and falls back to the body
// digest.
func DeliveryID(eventID string, body []byte) string {
	if eventID != "" {
		return eventID
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
