package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

func CatalogCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusOK, func(r *http.Request) ([]catalog.CategoryDTO, error) {
		return svc.ListCategories(r.Context())
	})
}

// CatalogShops lists shops currently accepting orders.
func CatalogShops(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusOK, func(r *http.Request) ([]catalog.ShopDTO, error) {
		return svc.ListShops(r.Context())
	})
}

// CatalogProducts takes optional shop_id and category_id filters.
func CatalogProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint(logg, http.StatusOK, func(r *http.Request) ([]catalog.ProductInfoDTO, error) {
		var filter catalog.ProductFilter
		var err error
		if filter.ShopID, err = validators.ParseQueryID(r, "shop_id"); err != nil {
			return nil, err
		}
		if filter.CategoryID, err = validators.ParseQueryID(r, "category_id"); err != nil {
			return nil, err
		}
		return svc.ListProducts(r.Context(), filter)
	})
}
