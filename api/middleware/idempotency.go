package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	mutationReplayTTL = 24 * time.Hour
	checkoutReplayTTL = 7 * 24 * time.Hour
	// A reservation outliving this is treated as abandoned.
	inFlightTTL = time.Minute
)

// ReplayStore persists responses keyed by the client's Idempotency-Key.
type ReplayStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// replayRoutes lists the mutations that honor Idempotency-Key. Patterns are
// matched segment by segment, with {param} matching any single segment.
var replayRoutes = []struct {
	method  string
	pattern string
	ttl     time.Duration
}{
	{http.MethodPost, "/api/v1/basket", mutationReplayTTL},
	{http.MethodPut, "/api/v1/basket", mutationReplayTTL},
	{http.MethodPost, "/api/v1/partner/update", mutationReplayTTL},
	{http.MethodPatch, "/api/v1/admin/orders/{orderId}/state", mutationReplayTTL},
	{http.MethodPost, "/api/v1/order", checkoutReplayTTL},
}

type replayState string

const (
	replayPending  replayState = "pending"
	replayComplete replayState = "complete"
)

type replayRecord struct {
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key.
// Requests without the header pass straight through. A key reused with a
// different body, or while the first request is still running, is refused.
// Server errors release the key so the client can retry.
func Idempotency(store ReplayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			ttl, ok := replayTTL(r.Method, routePattern(r))
			if store == nil || clientKey == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(replayScope(r), clientKey)
			fingerprint := fingerprint(body)

			pending, _ := json.Marshal(replayRecord{State: replayPending, Fingerprint: fingerprint})
			reserved, err := store.SetNX(ctx, key, string(pending), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, w, store, key, fingerprint, logg)
				return
			}

			rec := newRecorder(w, true)
			next.ServeHTTP(rec, r)

			if rec.Status() >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			done, _ := json.Marshal(replayRecord{
				State:       replayComplete,
				Fingerprint: fingerprint,
				Status:      rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err := store.Set(ctx, key, string(done), ttl); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotent response", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, w http.ResponseWriter, store ReplayStore, key, fingerprint string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Released between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is being retried"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	switch {
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case record.State != replayComplete:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// replayScope keeps keys from colliding across callers and endpoints.
func replayScope(r *http.Request) string {
	caller := "anonymous"
	if p, ok := authz.FromContext(r.Context()); ok {
		caller = p.UserID.String()
	}
	return caller + "|" + r.Method + "|" + r.URL.Path
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayTTL(method, path string) (time.Duration, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, route := range replayRoutes {
		if route.method == method && matchSegments(route.pattern, path) {
			return route.ttl, true
		}
	}
	return 0, false
}

func matchSegments(pattern, path string) bool {
	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if strings.HasPrefix(want[i], "{") && strings.HasSuffix(want[i], "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// routePattern prefers the matched chi pattern. Mounted subrouters report
// "/prefix/*" until routing completes, so those fall back to the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}
