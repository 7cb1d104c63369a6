package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

// Repository defines persistence operations for baskets and orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	FindBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	FindProductInfos(ctx context.Context, ids []int64) ([]models.ProductInfo, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	DeleteBasketItems(ctx context.Context, userID uuid.UUID, ids []int64) (int64, error)
	UpdateBasketItemQuantity(ctx context.Context, userID uuid.UUID, itemID int64, quantity int) (int64, error)
	CountItems(ctx context.Context, orderID int64) (int64, error)
	ContactBelongsTo(ctx context.Context, contactID int64, userID uuid.UUID) (bool, error)
	SubmitBasket(ctx context.Context, userID uuid.UUID, orderID, contactID int64, at time.Time) (int64, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListSupplierOrders(ctx context.Context, managerID uuid.UUID) ([]models.Order, error)
	FindOrder(ctx context.Context, orderID int64) (*models.Order, error)
	UpdateState(ctx context.Context, orderID int64, from, to enums.OrderState) (int64, error)
	Totals(ctx context.Context, orderIDs []int64, managerID *uuid.UUID) (map[int64]int64, error)
	DeleteStaleBaskets(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
