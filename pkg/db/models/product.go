package models

// Product is identified by (name, category).
type Product struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name       string `gorm:"column:name;not null;uniqueIndex:ux_products_name_category"`
	CategoryID int64  `gorm:"column:category_id;not null;uniqueIndex:ux_products_name_category"`

	Category *Category `gorm:"foreignKey:CategoryID"`
}
