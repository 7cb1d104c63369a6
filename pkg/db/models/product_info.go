package models

// ProductInfo is a shop-specific sellable listing of a product.
type ProductInfo struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID  int64  `gorm:"column:product_id;not null;index"`
	ShopID     int64  `gorm:"column:shop_id;not null;index"`
	ExternalID int64  `gorm:"column:external_id;not null"`
	Model      string `gorm:"column:model;not null;default:''"`
	Quantity   int    `gorm:"column:quantity;not null"`
	Price      int64  `gorm:"column:price;not null"`
	PriceRRC   int64  `gorm:"column:price_rrc;not null"`

	Product           *Product           `gorm:"foreignKey:ProductID"`
	Shop              *Shop              `gorm:"foreignKey:ShopID"`
	ProductParameters []ProductParameter `gorm:"foreignKey:ProductInfoID"`
}
