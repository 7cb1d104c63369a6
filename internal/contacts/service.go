package contacts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// Service manages delivery contacts. Owners manage their own; staff manage all.
type Service interface {
	List(ctx context.Context, principal *authz.Principal) ([]ContactDTO, error)
	Create(ctx context.Context, principal *authz.Principal, req CreateRequest) (*ContactDTO, error)
	Update(ctx context.Context, principal *authz.Principal, id int64, req UpdateRequest) (*ContactDTO, error)
	Delete(ctx context.Context, principal *authz.Principal, id int64) error
}

type contactRepository interface {
	List(ctx context.Context, userID *uuid.UUID) ([]models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) error
	FindByID(ctx context.Context, id int64) (*models.Contact, error)
	Update(ctx context.Context, id int64, cols map[string]any) error
	Delete(ctx context.Context, id int64) (int64, error)
}

type service struct {
	repo contactRepository
}

// NewService builds a contacts service.
func NewService(repo contactRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "contacts repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, principal *authz.Principal) ([]ContactDTO, error) {
	if err := authz.Authorize(principal, principalID(principal)); err != nil {
		return nil, err
	}
	var scope *uuid.UUID
	if !principal.IsStaff() {
		scope = &principal.UserID
	}
	rows, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list contacts")
	}
	out := make([]ContactDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, principal *authz.Principal, req CreateRequest) (*ContactDTO, error) {
	if err := authz.Authorize(principal, principalID(principal)); err != nil {
		return nil, err
	}
	contact := req.toModel(principal.UserID)
	if contact.City == "" || contact.Street == "" || contact.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city, street and phone are required")
	}
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create contact")
	}
	dto := FromModel(*contact)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, principal *authz.Principal, id int64, req UpdateRequest) (*ContactDTO, error) {
	if _, err := s.loadAuthorized(ctx, principal, id); err != nil {
		return nil, err
	}
	cols := req.columns()
	for _, required := range []string{"city", "street", "phone"} {
		if value, ok := cols[required]; ok && value == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, required+" cannot be empty")
		}
	}
	if err := s.repo.Update(ctx, id, cols); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update contact")
	}
	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload contact")
	}
	dto := FromModel(*updated)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, principal *authz.Principal, id int64) error {
	if _, err := s.loadAuthorized(ctx, principal, id); err != nil {
		return err
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete contact")
	}
	return nil
}

// loadAuthorized hides contacts of other users behind NotFound.
func (s *service) loadAuthorized(ctx context.Context, principal *authz.Principal, id int64) (*models.Contact, error) {
	if err := authz.Authorize(principal, principalID(principal)); err != nil {
		return nil, err
	}
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load contact")
	}
	if err := authz.Authorize(principal, contact.UserID); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
	}
	return contact, nil
}

func principalID(p *authz.Principal) uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.UserID
}
