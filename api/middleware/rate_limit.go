package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopcore-backend/api/responses"
	"github.com/angelmondragon/shopcore-backend/api/validators"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// SubjectFunc names who a request acts for, beyond its IP. An empty subject
// is not counted.
type SubjectFunc func(r *http.Request) (string, error)

// RateLimitPolicy throttles one surface per client IP and per subject.
type RateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int
	subjectKind  string
	subjectLimit int
	subject      SubjectFunc
}

// NewRateLimitPolicy counts per IP and per customer email found in the JSON
// body. A zero limit turns that counter off.
func NewRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	return RateLimitPolicy{
		name:         name,
		window:       window,
		ipLimit:      ipLimit,
		subjectKind:  "email",
		subjectLimit: emailLimit,
		subject:      BodyEmail,
	}
}

// WithSubject swaps the email counter for another one.
func (p RateLimitPolicy) WithSubject(kind string, limit int, fn SubjectFunc) RateLimitPolicy {
	p.subjectKind = kind
	p.subjectLimit = limit
	p.subject = fn
	return p
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.subjectLimit > 0)
}

// retryAfter rounds the window up to whole seconds.
func (p RateLimitPolicy) retryAfter() string {
	return strconv.Itoa(int(math.Ceil(p.window.Seconds())))
}

// RateLimit rejects with 429 once a counter passes its limit inside the
// window. Subjects are hashed before they reach Redis or the logs.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := ClientIP(r); ip != "" {
					if !policy.admit(ctx, logg, w, store, "ip", ip, policy.ipLimit) {
						return
					}
				}
			}
			if policy.subjectLimit > 0 && policy.subject != nil {
				subject, err := policy.subject(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if subject != "" && !policy.admit(ctx, logg, w, store, policy.subjectKind, hashValue(subject), policy.subjectLimit) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// admit counts one hit and writes the rejection itself when it returns false.
func (p RateLimitPolicy) admit(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store rateLimiterStore, kind, value string, limit int) bool {
	scope := kind + ":" + p.name + ":" + value
	allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(limit), p.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if allowed {
		return true
	}

	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         p.name,
			"scope":          kind,
			"key":            value,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(p.window.Seconds()),
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", p.retryAfter())
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
	return false
}

// BodyEmail reads the top-level or checkout customer email and puts the body
// back for the handler. Bodies that are not JSON have no subject.
func BodyEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return normalizeEmail(extractEmail(body)), nil
}

// URLParam uses a route parameter as the subject, e.g. the order number on
// public lookups.
func URLParam(name string) SubjectFunc {
	return func(r *http.Request) (string, error) {
		return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, name))), nil
	}
}

// ClientIP prefers the first forwarded address over the socket peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractEmail(payload []byte) string {
	var body struct {
		Email    string `json:"email"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	if body.Email != "" {
		return body.Email
	}
	return body.Customer.Email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}
