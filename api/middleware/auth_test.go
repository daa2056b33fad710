package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore-backend/pkg/auth"
	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: "user-1", Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type capturedIdentity struct {
	user    string
	role    enums.ActorRole
	session string
}

func identityHandler(captured *capturedIdentity) http.Handler {
	return Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.session = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func TestIdentityAllowsAnonymousSession(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "sess-1")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != "" {
		t.Fatalf("expected anonymous caller, got %s", captured.user)
	}
	if captured.session != "sess-1" {
		t.Fatalf("expected session sess-1 got %q", captured.session)
	}
	if captured.role != enums.ActorRoleCustomer {
		t.Fatalf("expected customer role got %s", captured.role)
	}
}

func TestIdentityReadsSessionCookie(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "cookie-sess"})
	identityHandler(&captured).ServeHTTP(httptest.NewRecorder(), req)

	if captured.session != "cookie-sess" {
		t.Fatalf("expected cookie session got %q", captured.session)
	}
}

func TestIdentityRejectsInvalidToken(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestIdentityAllowsValidToken(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, enums.ActorRoleAdmin))
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != "user-1" {
		t.Fatalf("expected user-1 got %q", captured.user)
	}
	if captured.role != enums.ActorRoleAdmin {
		t.Fatalf("expected admin role got %s", captured.role)
	}
}

func TestRequireRoleRejectsCustomer(t *testing.T) {
	handler := RequireRole(nil, enums.ActorRoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	handler := RequireUser(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartIdentityCombinesCallerAndGuestToken(t *testing.T) {
	token := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithSessionID(req.Context(), "sess-9")

	identity := CartIdentity(ctx, token)
	if identity.SessionID != "sess-9" || identity.GuestToken != token || identity.UserID != "" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}
