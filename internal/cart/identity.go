package cart

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

const (
	userPrefix    = "user_"
	sessionPrefix = "session_"
	guestPrefix   = "guest_"
)

// Identity is the caller as resolved by the transport layer. Exactly one class
// is considered when checking ownership: an authenticated user only ever owns
// user carts, even if a session id or guest token is also present.
type Identity struct {
	UserID     string
	SessionID  string
	GuestToken uuid.UUID
}

// Selectors carries everything GetOrCreate may use to find a cart.
type Selectors struct {
	UserID    string
	CartID    *uuid.UUID
	SessionID string
}

// Identity derives the ownership identity from the selectors. An explicit
// cart id doubles as the guest token.
func (s Selectors) Identity() Identity {
	id := Identity{UserID: strings.TrimSpace(s.UserID), SessionID: strings.TrimSpace(s.SessionID)}
	if s.CartID != nil {
		id.GuestToken = *s.CartID
	}
	return id
}

// UserOwnerKey builds the owner key of an authenticated user's cart.
func UserOwnerKey(userID string) string { return userPrefix + userID }

// SessionOwnerKey builds the owner key of an anonymous session cart.
func SessionOwnerKey(sessionID string) string { return sessionPrefix + sessionID }

// GuestOwnerKey builds the owner key of a cart minted without any identity.
func GuestOwnerKey(cartID uuid.UUID) string { return guestPrefix + cartID.String() }

// OwnerKindOf classifies an owner key by its prefix.
func OwnerKindOf(ownerKey string) enums.OwnerKind {
	switch {
	case strings.HasPrefix(ownerKey, userPrefix):
		return enums.OwnerKindUser
	case strings.HasPrefix(ownerKey, sessionPrefix):
		return enums.OwnerKindSession
	case strings.HasPrefix(ownerKey, guestPrefix):
		return enums.OwnerKindGuest
	default:
		return ""
	}
}

// Owns reports whether the identity may act on a cart or order with the given
// owner key. Ownership classes never cross.
func (i Identity) Owns(ownerKey string) bool {
	switch OwnerKindOf(ownerKey) {
	case enums.OwnerKindUser:
		return i.UserID != "" && ownerKey == UserOwnerKey(i.UserID)
	case enums.OwnerKindSession:
		return i.UserID == "" && i.SessionID != "" && ownerKey == SessionOwnerKey(i.SessionID)
	case enums.OwnerKindGuest:
		return i.UserID == "" && i.GuestToken != uuid.Nil && ownerKey == GuestOwnerKey(i.GuestToken)
	default:
		return false
	}
}

// UserIDPtr returns the user id for persistence, nil for anonymous callers.
func (i Identity) UserIDPtr() *string {
	if i.UserID == "" {
		return nil
	}
	id := i.UserID
	return &id
}
