package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Company     string     `json:"company"`
	Position    string     `json:"position"`
	Type        enums.Role `json:"type"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Company      string
	Position     string
	Role         enums.Role
	IsActive     bool
}

// ProfileUpdate carries a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	Company      *string
	Position     *string
	PasswordHash *string
}

// Columns returns the column map for a gorm Updates call.
func (p ProfileUpdate) Columns() map[string]any {
	cols := map[string]any{}
	if p.FirstName != nil {
		cols["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		cols["last_name"] = *p.LastName
	}
	if p.Company != nil {
		cols["company"] = *p.Company
	}
	if p.Position != nil {
		cols["position"] = *p.Position
	}
	if p.PasswordHash != nil {
		cols["password_hash"] = *p.PasswordHash
	}
	return cols
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Company:     u.Company,
		Position:    u.Position,
		Type:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.RoleCustomer
	}
	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Email:        NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Company:      c.Company,
		Position:     c.Position,
		Role:         role,
		IsActive:     c.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
