package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopcore-backend/pkg/redis"
)

const (
	markerPending = "pending"
	markerDone    = "done"

	// A claim that is never confirmed expires after this so a crashed
	// consumer does not swallow the event for the full TTL.
	defaultPendingTTL = 2 * time.Minute
)

// Manager guards consumers against handling an event twice. A first delivery
// claims the event with a short-lived pending marker; Confirm turns it into a
// done marker that lives for the full TTL, and Delete gives it up so the
// provider or Pub/Sub can redeliver.
//
// Keys follow `<prefix>:idempotency:evt:processed:<consumer>:<event_id>`.
type Manager struct {
	store      redis.IdempotencyStore
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	pending := defaultPendingTTL
	if ttl > 0 && ttl < pending {
		pending = ttl
	}
	return &Manager{store: store, ttl: ttl, pendingTTL: pending}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It returns true when the
// event is already done or claimed by another delivery.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, markerPending, m.pendingTTL)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return !claimed, nil
}

// Confirm records eventID as handled for the full TTL. A claim that already
// expired is recreated.
func (m *Manager) Confirm(ctx context.Context, consumer, eventID string) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	updated, err := m.store.SetXX(ctx, key, markerDone, m.ttl)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !updated {
		if _, err := m.store.SetNX(ctx, key, markerDone, m.ttl); err != nil {
			return fmt.Errorf("confirm %s: %w", key, err)
		}
	}
	return nil
}

// Delete releases the marker so a failed event can be delivered again.
func (m *Manager) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer, eventID string) (string, error) {
	switch {
	case strings.TrimSpace(consumer) == "":
		return "", errors.New("consumer name is required")
	case strings.TrimSpace(eventID) == "":
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID), nil
}
