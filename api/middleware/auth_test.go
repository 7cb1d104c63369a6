package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveWithToken(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Message
}

func TestAuthRejections(t *testing.T) {
	valid, _ := mintTestToken(t, testJWT, enums.RoleCustomer, time.Now())
	expired, _ := mintTestToken(t, testJWT, enums.RoleCustomer, time.Now().Add(-time.Hour))

	cases := []struct {
		name     string
		token    string
		sessions stubSessionVerifier
		status   int
		message  string
	}{
		{"missing", "", stubSessionVerifier{ok: true}, http.StatusUnauthorized, "missing credentials"},
		{"garbage", "invalid", stubSessionVerifier{ok: true}, http.StatusUnauthorized, "invalid token"},
		{"expired", expired, stubSessionVerifier{ok: true}, http.StatusUnauthorized, "token expired"},
		{"revoked", valid, stubSessionVerifier{ok: false}, http.StatusUnauthorized, "session unavailable"},
		{"session store down", valid, stubSessionVerifier{err: errors.New("redis down")}, http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveWithToken(Auth(testJWT, tc.sessions, nil)(okHandler()), tc.token)
			assert.Equal(t, tc.status, rec.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, errorMessage(t, rec))
			}
		})
	}
}

func TestAuthSeedsPrincipal(t *testing.T) {
	token, userID := mintTestToken(t, testJWT, enums.RoleShop, time.Now())

	var got *authz.Principal
	h := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = authz.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := serveWithToken(h, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, enums.RoleShop, got.Role)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(nil, enums.RoleShop, enums.RoleStaff)(okHandler())
	as := func(p *authz.Principal) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			req = req.WithContext(authz.WithPrincipal(req.Context(), *p))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, as(nil))
	assert.Equal(t, http.StatusForbidden, as(&authz.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}))
	assert.Equal(t, http.StatusOK, as(&authz.Principal{UserID: uuid.New(), Role: enums.RoleShop}))
	assert.Equal(t, http.StatusOK, as(&authz.Principal{UserID: uuid.New(), Role: enums.RoleStaff}))
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"abc":          "abc",
		"":             "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		got, ok := BearerToken(req)
		assert.Equal(t, want, got, header)
		assert.Equal(t, want != "", ok, header)
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.Role, at time.Time) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, at, auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return token, userID
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(context.Context, string) (bool, error) {
	return s.ok, s.err
}
