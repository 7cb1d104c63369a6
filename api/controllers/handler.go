// Package controllers adapts the domain services to chi handlers. Every
// handler answers with the envelopes from api/responses.
package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/authz"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// endpoint writes fn's result under status, or the error envelope.
func endpoint[T any](logg *logger.Logger, status int, fn func(*http.Request) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := fn(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

// authed is endpoint for routes mounted behind middleware.Auth.
func authed[T any](logg *logger.Logger, status int, fn func(*http.Request, *authz.Principal) (T, error)) http.HandlerFunc {
	return endpoint(logg, status, func(r *http.Request) (T, error) {
		p, err := requirePrincipal(r)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(r, p)
	})
}

func requirePrincipal(r *http.Request) (*authz.Principal, error) {
	principal, ok := authz.FromContext(r.Context())
	if !ok || principal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return principal, nil
}

func decode[T any](r *http.Request) (T, error) {
	var req T
	err := validators.DecodeJSONBody(r, &req)
	return req, err
}

func parsePathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, param)), 10, 64)
	if err != nil || id < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid id").
			WithDetails(map[string]string{param: "must be a positive integer"})
	}
	return id, nil
}

// missing returns nil when details is empty.
func missing(details map[string]string) error {
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// ack is the body of endpoints that only report an outcome.
func ack(s string) map[string]string {
	return map[string]string{"status": s}
}
