package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/shopcore-backend/api/responses"
	pkgAuth "github.com/angelmondragon/shopcore-backend/pkg/auth"
	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

const (
	SessionHeader = "X-Session-ID"
	sessionCookie = "shopcore_session"
	maxSessionLen = 128
)

// Identity resolves who is calling. A bearer token is optional, but when
// present it must verify. Anonymous callers are identified by a session id
// from the X-Session-ID header or the session cookie.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fields := map[string]any{}

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					msg := "invalid token"
					if errors.Is(err, pkgAuth.ErrTokenExpired) {
						msg = "token expired"
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
					return
				}

				ctx = WithRole(WithUserID(ctx, claims.UserID), claims.Role)
				fields["user_id"] = claims.UserID
				fields["actor_role"] = claims.Role.String()
			} else {
				ctx = WithRole(ctx, enums.ActorRoleCustomer)
			}

			if sessionID := sessionFromRequest(r); sessionID != "" {
				ctx = WithSessionID(ctx, sessionID)
				fields["session_id"] = sessionID
			}

			if logg != nil && len(fields) > 0 {
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous callers.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionFromRequest(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get(SessionHeader))
	if value == "" {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			value = strings.TrimSpace(cookie.Value)
		}
	}
	if len(value) > maxSessionLen {
		return ""
	}
	return value
}
