package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/repo"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// Repository reads and writes the users table.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.DB(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches on the normalized address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.find(ctx, "id = ?", id)
}

func (r *Repository) find(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where(query, arg).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin leaves updated_at alone; a login is not a profile change.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return repo.UpdateByID[models.User](r.DB(ctx), id, map[string]any{"last_login_at": at.UTC()})
}

// Activate marks the account confirmed.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.touch(ctx, id, map[string]any{"is_active": true})
}

// UpdateProfile applies the non-nil fields of update and returns the stored row.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.User, error) {
	if cols := update.Columns(); len(cols) > 0 {
		if err := r.touch(ctx, id, cols); err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.touch(ctx, id, map[string]any{"password_hash": hash})
}

func (r *Repository) touch(ctx context.Context, id uuid.UUID, cols map[string]any) error {
	cols["updated_at"] = time.Now().UTC()
	return repo.UpdateByID[models.User](r.DB(ctx), id, cols)
}
