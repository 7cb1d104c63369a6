package models

// Category carries the supplier-assigned numeric id.
type Category struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:name;not null"`

	Shops []Shop `gorm:"many2many:shop_categories;"`
}
