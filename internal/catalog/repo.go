package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// Repository reads the public catalog and manages shop state.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ShopsByUser returns every shop managed by userID.
func (r *Repository) ShopsByUser(ctx context.Context, userID uuid.UUID) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&shops).Error
	return shops, err
}

// SetStateForUser toggles order acceptance for all of the manager's shops.
func (r *Repository) SetStateForUser(ctx context.Context, userID uuid.UUID, state bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]any{"state": state, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

// ListActiveShops returns shops currently accepting orders.
func (r *Repository) ListActiveShops(ctx context.Context) ([]models.Shop, error) {
	var rows []models.Shop
	err := r.db.WithContext(ctx).Where("state = ?", true).Order("id ASC").Find(&rows).Error
	return rows, err
}

// ListProducts returns listings of active shops with product, category and parameters loaded.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]models.ProductInfo, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ProductInfo{}).
		Select("product_infos.*").
		Joins("JOIN shops ON shops.id = product_infos.shop_id").
		Joins("JOIN products ON products.id = product_infos.product_id").
		Where("shops.state = ?", true)
	if filter.ShopID != nil {
		query = query.Where("product_infos.shop_id = ?", *filter.ShopID)
	}
	if filter.CategoryID != nil {
		query = query.Where("products.category_id = ?", *filter.CategoryID)
	}

	var rows []models.ProductInfo
	err := query.
		Preload("Product.Category").
		Preload("Shop").
		Preload("ProductParameters.Parameter").
		Order("product_infos.id ASC").
		Find(&rows).Error
	return rows, err
}
