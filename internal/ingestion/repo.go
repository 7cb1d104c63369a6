package ingestion

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/internal/repo"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// Repository writes supplier catalogs. All methods are expected to run on a
// transaction handle obtained through WithTx.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// GetOrCreateShop finds the shop by (name, user_id), creating it in the open state.
func (r *Repository) GetOrCreateShop(ctx context.Context, name string, userID uuid.UUID) (*models.Shop, error) {
	shop := models.Shop{Name: name, UserID: userID, State: true}
	if err := repo.InsertOrGet(r.DB(ctx), &shop, []string{"name", "user_id"}, "name = ? AND user_id = ?", name, userID); err != nil {
		return nil, err
	}
	return &shop, nil
}

// UpsertCategory stores the supplier category id, refreshing its name.
func (r *Repository) UpsertCategory(ctx context.Context, id int64, name string) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&models.Category{ID: id, Name: name}).Error
}

func (r *Repository) LinkCategory(ctx context.Context, shopID, categoryID int64) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ShopCategory{ShopID: shopID, CategoryID: categoryID}).Error
}

// DeleteListings drops every listing of the shop. Parameters and order lines
// referencing them cascade.
func (r *Repository) DeleteListings(ctx context.Context, shopID int64) (int64, error) {
	res := r.DB(ctx).Where("shop_id = ?", shopID).Delete(&models.ProductInfo{})
	return res.RowsAffected, res.Error
}

func (r *Repository) GetOrCreateProduct(ctx context.Context, name string, categoryID int64) (*models.Product, error) {
	product := models.Product{Name: name, CategoryID: categoryID}
	if err := repo.InsertOrGet(r.DB(ctx), &product, []string{"name", "category_id"}, "name = ? AND category_id = ?", name, categoryID); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) CreateListing(ctx context.Context, info *models.ProductInfo) error {
	return r.DB(ctx).Omit(clause.Associations).Create(info).Error
}

func (r *Repository) GetOrCreateParameter(ctx context.Context, name string) (*models.Parameter, error) {
	param := models.Parameter{Name: name}
	if err := repo.InsertOrGet(r.DB(ctx), &param, []string{"name"}, "name = ?", name); err != nil {
		return nil, err
	}
	return &param, nil
}

func (r *Repository) CreateProductParameter(ctx context.Context, pp *models.ProductParameter) error {
	return r.DB(ctx).Omit(clause.Associations).Create(pp).Error
}
