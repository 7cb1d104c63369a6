package models

// Parameter is a global named attribute such as "RAM".
type Parameter struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;not null;uniqueIndex"`
}

// ProductParameter stores a parameter value for one listing.
type ProductParameter struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ProductInfoID int64  `gorm:"column:product_info_id;not null;uniqueIndex:ux_product_parameters_info_param"`
	ParameterID   int64  `gorm:"column:parameter_id;not null;uniqueIndex:ux_product_parameters_info_param"`
	Value         string `gorm:"column:value;not null"`

	Parameter *Parameter `gorm:"foreignKey:ParameterID"`
}
