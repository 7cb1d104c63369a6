package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

func TestAuthRateLimitKeepsBodyForHandler(t *testing.T) {
	store := newFakeRateStore()
	policy := AuthRateLimitPolicy{Name: "login", Window: time.Minute, PerIP: 2, PerEmail: 2}
	var seen string
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	rec := serveLogin(handler, "1.2.3.4:5678", `{"email":"Tester@Example.com","password":"secret"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, seen, `"password":"secret"`)
	assert.Len(t, store.counts, 2)
	for key := range store.counts {
		assert.NotContains(t, key, "tester@example.com")
	}
}

func TestAuthRateLimitEmailLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := AuthRateLimit(AuthRateLimitPolicy{Name: "login", Window: time.Minute, PerEmail: 2}, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := serveLogin(handler, "10.0.0.1:1", `{"email":"blocked@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	// Case and whitespace do not reset the counter.
	rec := serveLogin(handler, "10.0.0.2:1", `{"email":" BLOCKED@example.com "}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	var payload struct {
		Status bool `json:"status"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.False(t, payload.Status)
	assert.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
}

func TestAuthRateLimitIPLimitUsesForwardedFor(t *testing.T) {
	store := newFakeRateStore()
	handler := AuthRateLimit(RegisterPolicy(config.AuthRateLimitConfig{RegisterWindow: time.Minute, RegisterIPLimit: 1}), store, nil)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/api/v1/user/register", strings.NewReader(`{}`))
	first.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/user/register", strings.NewReader(`{}`))
	second.Header.Set("X-Forwarded-For", "9.9.9.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, store.counts, "rl:register:ip:9.9.9.9")
}

func TestAuthRateLimitDisabledWithoutLimiter(t *testing.T) {
	policy := PasswordResetPolicy(config.AuthRateLimitConfig{RegisterWindow: time.Minute, RegisterIPLimit: 1})
	assert.Equal(t, "password_reset", policy.Name)

	handler := AuthRateLimit(policy, nil, nil)(okHandler())
	for i := 0; i < 3; i++ {
		rec := serveLogin(handler, "1.1.1.1:1", `{}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func serveLogin(h http.Handler, remote, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", strings.NewReader(body))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(policy, subject string) string {
	return "rl:" + policy + ":" + subject
}
