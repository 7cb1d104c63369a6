package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Order is a customer basket or a submitted order.
type Order struct {
	ID        int64            `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	State     enums.OrderState `gorm:"column:state;type:order_state;not null"`
	ContactID *int64           `gorm:"column:contact_id"`
	Dt        time.Time        `gorm:"column:dt;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Contact    *Contact    `gorm:"foreignKey:ContactID"`
	OrderItems []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem is one basket or order line.
type OrderItem struct {
	ID            int64 `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       int64 `gorm:"column:order_id;not null;uniqueIndex:ux_order_items_order_product_info"`
	ProductInfoID int64 `gorm:"column:product_info_id;not null;uniqueIndex:ux_order_items_order_product_info"`
	Quantity      int   `gorm:"column:quantity;not null"`

	ProductInfo *ProductInfo `gorm:"foreignKey:ProductInfoID"`
}
