package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	pkgAuth "github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// AccessTokenHeader repeats the freshly minted access token outside the body.
const AccessTokenHeader = "X-Marketplace-Token"

type sessionStore interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// presentedSession reads the bearer token without checking expiry: logout and
// refresh must work for a token that has just run out.
func presentedSession(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	raw, ok := middleware.BearerToken(r)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

// AuthLogout ends the session named by the presented token's jti.
func AuthLogout(sessions sessionStore, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims, err := presentedSession(r, cfg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := sessions.Revoke(ctx, claims.ID); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session"))
			return
		}
		responses.WriteSuccess(w, ack("logged_out"))
	}
}

// AuthRefresh swaps a refresh token for a new pair. The old refresh token
// stops working.
func AuthRefresh(sessions sessionStore, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		claims, err := presentedSession(r, cfg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		accessID, refresh, err := sessions.Rotate(ctx, claims.ID, body.RefreshToken)
		switch {
		case errors.Is(err, session.ErrInvalidRefreshToken):
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token"))
			return
		case err != nil:
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session"))
			return
		}

		access, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
			UserID: claims.UserID,
			Role:   claims.Role,
			JTI:    accessID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt"))
			return
		}
		w.Header().Set(AccessTokenHeader, access)
		responses.WriteSuccess(w, refreshResponse{AccessToken: access, RefreshToken: refresh})
	}
}
