package contacts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// Repository persists delivery contacts.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// List returns the user's contacts, or every contact when userID is nil.
func (r *Repository) List(ctx context.Context, userID *uuid.UUID) ([]models.Contact, error) {
	query := r.db.WithContext(ctx).Model(&models.Contact{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var rows []models.Contact
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) Create(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

// FindOwned loads the contact only when it belongs to userID.
func (r *Repository) FindOwned(ctx context.Context, id int64, userID uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *Repository) Update(ctx context.Context, id int64, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	cols["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.Contact{}).Where("id = ?", id).UpdateColumns(cols).Error
}

func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Contact{})
	return res.RowsAffected, res.Error
}
