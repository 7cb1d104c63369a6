package contacts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// ContactDTO is the transport shape of a delivery contact.
type ContactDTO struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	House     string    `json:"house"`
	Structure string    `json:"structure"`
	Building  string    `json:"building"`
	Apartment string    `json:"apartment"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest is the payload for a new contact.
type CreateRequest struct {
	City      string `json:"city" validate:"required"`
	Street    string `json:"street" validate:"required"`
	House     string `json:"house"`
	Structure string `json:"structure"`
	Building  string `json:"building"`
	Apartment string `json:"apartment"`
	Phone     string `json:"phone" validate:"required"`
}

// UpdateRequest changes only the provided fields.
type UpdateRequest struct {
	City      *string `json:"city,omitempty"`
	Street    *string `json:"street,omitempty"`
	House     *string `json:"house,omitempty"`
	Structure *string `json:"structure,omitempty"`
	Building  *string `json:"building,omitempty"`
	Apartment *string `json:"apartment,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

func (u UpdateRequest) columns() map[string]any {
	cols := map[string]any{}
	set := func(name string, value *string) {
		if value != nil {
			cols[name] = strings.TrimSpace(*value)
		}
	}
	set("city", u.City)
	set("street", u.Street)
	set("house", u.House)
	set("structure", u.Structure)
	set("building", u.Building)
	set("apartment", u.Apartment)
	set("phone", u.Phone)
	return cols
}

func FromModel(c models.Contact) ContactDTO {
	return ContactDTO{
		ID:        c.ID,
		UserID:    c.UserID,
		City:      c.City,
		Street:    c.Street,
		House:     c.House,
		Structure: c.Structure,
		Building:  c.Building,
		Apartment: c.Apartment,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

func (r CreateRequest) toModel(userID uuid.UUID) *models.Contact {
	now := time.Now().UTC()
	return &models.Contact{
		UserID:    userID,
		City:      strings.TrimSpace(r.City),
		Street:    strings.TrimSpace(r.Street),
		House:     strings.TrimSpace(r.House),
		Structure: strings.TrimSpace(r.Structure),
		Building:  strings.TrimSpace(r.Building),
		Apartment: strings.TrimSpace(r.Apartment),
		Phone:     strings.TrimSpace(r.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
