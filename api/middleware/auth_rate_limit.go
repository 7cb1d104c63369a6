package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Only the email field is read from throttled bodies.
const maxRateLimitBody = 64 << 10

// RateLimiter counts hits per key inside a sliding TTL.
type RateLimiter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, subject string) string
}

// AuthRateLimitPolicy throttles one credential endpoint by client IP and by
// the email address in the request body. A zero limit disables that check.
type AuthRateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func LoginPolicy(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{Name: "login", Window: cfg.LoginWindow, PerIP: cfg.LoginIPLimit, PerEmail: cfg.LoginEmailLimit}
}

func RegisterPolicy(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{Name: "register", Window: cfg.RegisterWindow, PerIP: cfg.RegisterIPLimit, PerEmail: cfg.RegisterEmailLimit}
}

// PasswordResetPolicy shares the register limits; both send mail.
func PasswordResetPolicy(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	p := RegisterPolicy(cfg)
	p.Name = "password_reset"
	return p
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

type rateCheck struct {
	dimension string
	subject   string
	limit     int
}

// AuthRateLimit rejects requests with 429 once any counter for the policy
// passes its limit.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	policy.Name = strings.ToLower(strings.TrimSpace(policy.Name))
	if policy.Name == "" {
		policy.Name = "auth"
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil || !policy.enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checks, err := policy.checksFor(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			for _, check := range checks {
				key := limiter.RateLimitKey(policy.Name, check.dimension+":"+check.subject)
				hits, err := limiter.IncrWithTTL(ctx, key, policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if hits > int64(check.limit) {
					policy.reject(ctx, logg, w, check, hits)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checksFor lists the counters this request touches. The body is restored
// for the handler after the email is read.
func (p AuthRateLimitPolicy) checksFor(r *http.Request) ([]rateCheck, error) {
	var checks []rateCheck
	if p.PerIP > 0 {
		if ip := clientIP(r); ip != "" {
			checks = append(checks, rateCheck{dimension: "ip", subject: ip, limit: p.PerIP})
		}
	}
	if p.PerEmail > 0 && r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
		if err != nil {
			return nil, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		if email := emailFromBody(body); email != "" {
			checks = append(checks, rateCheck{dimension: "email", subject: hashEmail(email), limit: p.PerEmail})
		}
	}
	return checks, nil
}

func (p AuthRateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, check rateCheck, hits int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    p.Name,
			"dimension": check.dimension,
			"subject":   check.subject,
			"hits":      hits,
			"limit":     check.limit,
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(p.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

// Raw addresses never reach redis or the logs.
func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}
