package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a delivery address owned by a user.
type Contact struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	City      string    `gorm:"column:city;not null"`
	Street    string    `gorm:"column:street;not null"`
	House     string    `gorm:"column:house;not null;default:''"`
	Structure string    `gorm:"column:structure;not null;default:''"`
	Building  string    `gorm:"column:building;not null;default:''"`
	Apartment string    `gorm:"column:apartment;not null;default:''"`
	Phone     string    `gorm:"column:phone;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
