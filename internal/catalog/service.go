package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// Service exposes the public catalog and the supplier's order-acceptance switch.
type Service interface {
	PartnerState(ctx context.Context, principal *authz.Principal) (map[string]bool, error)
	SetPartnerState(ctx context.Context, principal *authz.Principal, state bool) (map[string]bool, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListShops(ctx context.Context) ([]ShopDTO, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]ProductInfoDTO, error)
}

type catalogRepository interface {
	ShopsByUser(ctx context.Context, userID uuid.UUID) ([]models.Shop, error)
	SetStateForUser(ctx context.Context, userID uuid.UUID, state bool) (int64, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListActiveShops(ctx context.Context) ([]models.Shop, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.ProductInfo, error)
}

type service struct {
	repo catalogRepository
}

func NewService(repo catalogRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	return &service{repo: repo}, nil
}

// PartnerState maps each of the manager's shop names to its state.
func (s *service) PartnerState(ctx context.Context, principal *authz.Principal) (map[string]bool, error) {
	if err := authz.RequireRole(principal, enums.RoleShop); err != nil {
		return nil, err
	}
	shops, err := s.repo.ShopsByUser(ctx, principal.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shops")
	}
	out := make(map[string]bool, len(shops))
	for _, shop := range shops {
		out[shop.Name] = shop.State
	}
	return out, nil
}

func (s *service) SetPartnerState(ctx context.Context, principal *authz.Principal, state bool) (map[string]bool, error) {
	if err := authz.RequireRole(principal, enums.RoleShop); err != nil {
		return nil, err
	}
	affected, err := s.repo.SetStateForUser(ctx, principal.UserID, state)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shop state")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no shops registered for this account")
	}
	return s.PartnerState(ctx, principal)
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryFromModel(row))
	}
	return out, nil
}

func (s *service) ListShops(ctx context.Context) ([]ShopDTO, error) {
	rows, err := s.repo.ListActiveShops(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shops")
	}
	out := make([]ShopDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, shopFromModel(row))
	}
	return out, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]ProductInfoDTO, error) {
	rows, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	out := make([]ProductInfoDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ProductInfoFromModel(row))
	}
	return out, nil
}
