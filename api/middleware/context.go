package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore-backend/internal/cart"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox"
)

// callerKey holds the caller resolved by Identity. Tests and handlers below
// Identity layer values on top with the With* helpers.
type callerKey struct{}

type caller struct {
	userID    string
	sessionID string
	role      enums.ActorRole
}

func callerFrom(ctx context.Context) caller {
	if ctx == nil {
		return caller{}
	}
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

func withCaller(ctx context.Context, update func(*caller)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := callerFrom(ctx)
	update(&c)
	return context.WithValue(ctx, callerKey{}, c)
}

func UserIDFromContext(ctx context.Context) string { return callerFrom(ctx).userID }

func SessionIDFromContext(ctx context.Context) string { return callerFrom(ctx).sessionID }

// RoleFromContext is empty when Identity did not run.
func RoleFromContext(ctx context.Context) enums.ActorRole { return callerFrom(ctx).role }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withCaller(ctx, func(c *caller) { c.userID = userID })
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withCaller(ctx, func(c *caller) { c.sessionID = sessionID })
}

func WithRole(ctx context.Context, role enums.ActorRole) context.Context {
	return withCaller(ctx, func(c *caller) { c.role = role })
}

// CartIdentity resolves the caller for cart and order ownership checks.
// guestToken is the cart id a guest presents; pass uuid.Nil when absent.
func CartIdentity(ctx context.Context, guestToken uuid.UUID) cart.Identity {
	c := callerFrom(ctx)
	return cart.Identity{UserID: c.userID, SessionID: c.sessionID, GuestToken: guestToken}
}

// Actor describes the caller for outbox envelopes.
func Actor(ctx context.Context, ownerKey string) *outbox.ActorRef {
	c := callerFrom(ctx)
	return &outbox.ActorRef{UserID: c.userID, OwnerKey: ownerKey, Role: c.role.String()}
}
