package auth

import (
	"context"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

const (
	purposeConfirm = "confirm"
	purposeReset   = "reset"
)

var errTokenNotFound = errors.New("account token not found")

type tokenStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccountTokenKey(purpose, token string) string
}

// accountTokens maps single-use confirmation and reset tokens to user ids.
type accountTokens struct {
	store tokenStore
	ttl   time.Duration
}

func (t accountTokens) put(ctx context.Context, purpose, token, userID string) error {
	return t.store.Set(ctx, t.store.AccountTokenKey(purpose, token), userID, t.ttl)
}

func (t accountTokens) lookup(ctx context.Context, purpose, token string) (string, error) {
	value, err := t.store.Get(ctx, t.store.AccountTokenKey(purpose, token))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", errTokenNotFound
		}
		return "", err
	}
	return value, nil
}

func (t accountTokens) drop(ctx context.Context, purpose, token string) error {
	return t.store.Del(ctx, t.store.AccountTokenKey(purpose, token))
}
