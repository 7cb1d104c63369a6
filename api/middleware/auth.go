package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	pkgAuth "github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Auth admits requests carrying a valid access token whose session is still
// live, and puts the caller on the request context as an authz.Principal.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			raw, ok := BearerToken(r)
			if !ok {
				fail(pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			switch {
			case pkgAuth.IsExpired(err):
				fail(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired"))
				return
			case err != nil:
				fail(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			case claims.ID == "" || !claims.Role.IsValid():
				fail(pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token"))
				return
			}

			if sessions != nil {
				live, err := sessions.HasSession(ctx, claims.ID)
				if err != nil {
					fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					fail(pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx = authz.WithPrincipal(ctx, authz.Principal{UserID: claims.UserID, Role: claims.Role})
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    claims.UserID.String(),
					"actor_role": claims.Role.String(),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through callers holding any of roles. Anonymous callers
// get 401; authenticated callers with another role get 403.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := authz.FromContext(r.Context())
			var want enums.Role
			if len(roles) > 0 {
				want = roles[0]
			}
			if p != nil && slices.Contains(roles, p.Role) {
				want = p.Role
			}
			if err := authz.RequireRole(p, want); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken reads the Authorization header; the Bearer prefix is optional.
func BearerToken(r *http.Request) (string, bool) {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token, token != ""
}
