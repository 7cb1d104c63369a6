package models

import (
	"time"

	"github.com/google/uuid"
)

// Shop is a supplier storefront owned by one manager.
type Shop struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:ux_shops_name_user"`
	URL       *string   `gorm:"column:url"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_shops_name_user"`
	State     bool      `gorm:"column:state;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Categories []Category `gorm:"many2many:shop_categories;"`
}

// ShopCategory links a shop to a category it lists.
type ShopCategory struct {
	ShopID     int64 `gorm:"column:shop_id;primaryKey"`
	CategoryID int64 `gorm:"column:category_id;primaryKey"`
}

func (ShopCategory) TableName() string {
	return "shop_categories"
}
