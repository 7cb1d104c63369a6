// Package authz centralizes role and ownership checks shared by HTTP middleware and services.
package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (p *Principal) authenticated() bool {
	return p != nil && p.UserID != uuid.Nil
}

// IsStaff reports whether the principal has the staff role.
func (p *Principal) IsStaff() bool {
	return p.authenticated() && p.Role == enums.RoleStaff
}

// RequireRole fails with Unauthorized for anonymous callers and Forbidden when the role differs.
func RequireRole(p *Principal, role enums.Role) error {
	if !p.authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if p.Role != role {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only "+role.String()+" accounts may perform this action")
	}
	return nil
}

// Authorize allows the owner of a resource and staff.
func Authorize(p *Principal, ownerID uuid.UUID) error {
	if !p.authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if p.UserID == ownerID || p.Role == enums.RoleStaff {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
}

type ctxKey struct{}

// WithPrincipal stores the caller on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the caller stored by WithPrincipal.
func FromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok {
		return nil, false
	}
	return &p, true
}
