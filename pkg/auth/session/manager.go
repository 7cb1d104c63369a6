// Package session keeps one refresh session per issued access token id (jti).
// Redis only ever sees a digest of the refresh token.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs to reject revoked tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store store
	ttl   time.Duration
}

// NewManager requires the refresh TTL to outlive the access token.
func NewManager(s store, cfg config.JWTConfig) (*Manager, error) {
	if s == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case ttl <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case ttl <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns the refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string) (string, error) {
	if blank(accessID) {
		return "", errors.New("access id is required")
	}
	return m.open(ctx, accessID)
}

// Rotate exchanges a refresh token for a new jti and refresh token. The old
// session is closed only after the new one is stored.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (string, string, error) {
	if blank(oldAccessID) || blank(refreshToken) {
		return "", "", ErrInvalidRefreshToken
	}
	oldKey := m.store.AccessSessionKey(oldAccessID)
	stored, err := m.store.Get(ctx, oldKey)
	if errors.Is(err, redislib.Nil) {
		return "", "", ErrInvalidRefreshToken
	}
	if err != nil {
		return "", "", fmt.Errorf("load session: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest(refreshToken))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}

	newAccessID := NewAccessID()
	newToken, err := m.open(ctx, newAccessID)
	if err != nil {
		return "", "", err
	}
	if err := m.store.Del(ctx, oldKey); err != nil {
		return "", "", fmt.Errorf("close session: %w", err)
	}
	return newAccessID, newToken, nil
}

// Revoke closes the session; later requests with that jti are rejected.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errors.New("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errors.New("access id is required")
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redislib.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (m *Manager) open(ctx context.Context, accessID string) (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), digest(token), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
