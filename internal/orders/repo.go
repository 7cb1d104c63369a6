package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds the orders repository to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertBasket returns the user's basket, creating it when absent. The
// partial unique index on (user_id) WHERE state = 'basket' keeps concurrent
// callers on a single row.
func (r *repository) UpsertBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	now := time.Now().UTC()
	row := models.Order{UserID: userID, State: enums.OrderStateBasket, Dt: now, UpdatedAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "user_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "state = 'basket'"}}},
			DoNothing:   true,
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}

	var basket models.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND state = ?", userID, enums.OrderStateBasket).
		Take(&basket).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", basket.ID).
		UpdateColumn("updated_at", now).Error; err != nil {
		return nil, err
	}
	return &basket, nil
}

// FindBasket returns the user's basket with lines loaded, or nil when none exists.
func (r *repository) FindBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var basket models.Order
	err := preloadOrder(r.db.WithContext(ctx)).
		Where("user_id = ? AND state = ?", userID, enums.OrderStateBasket).
		Take(&basket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

func (r *repository) FindProductInfos(ctx context.Context, ids []int64) ([]models.ProductInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ProductInfo
	err := r.db.WithContext(ctx).Preload("Shop").Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

// DeleteBasketItems removes lines from the user's basket; ids on other orders are ignored.
func (r *repository) DeleteBasketItems(ctx context.Context, userID uuid.UUID, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("id IN ? AND order_id IN (?)", ids, r.basketIDs(ctx, userID)).
		Delete(&models.OrderItem{})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateBasketItemQuantity(ctx context.Context, userID uuid.UUID, itemID int64, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND order_id IN (?)", itemID, r.basketIDs(ctx, userID)).
		UpdateColumn("quantity", quantity)
	return res.RowsAffected, res.Error
}

func (r *repository) CountItems(ctx context.Context, orderID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}

func (r *repository) ContactBelongsTo(ctx context.Context, contactID int64, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("id = ? AND user_id = ?", contactID, userID).
		Count(&count).Error
	return count > 0, err
}

// SubmitBasket moves the basket to state new. Zero affected rows means the
// order is not this user's basket.
func (r *repository) SubmitBasket(ctx context.Context, userID uuid.UUID, orderID, contactID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND state = ?", orderID, userID, enums.OrderStateBasket).
		UpdateColumns(map[string]any{
			"state":      enums.OrderStateNew,
			"contact_id": contactID,
			"dt":         at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

// ListOrders returns the user's submitted orders, newest first.
func (r *repository) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := preloadOrder(r.db.WithContext(ctx)).
		Where("user_id = ? AND state <> ?", userID, enums.OrderStateBasket).
		Order("dt DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// ListSupplierOrders returns submitted orders touching the manager's shops.
// Only the manager's own lines are loaded.
func (r *repository) ListSupplierOrders(ctx context.Context, managerID uuid.UUID) ([]models.Order, error) {
	managed := r.db.WithContext(ctx).
		Model(&models.ProductInfo{}).
		Select("product_infos.id").
		Joins("JOIN shops ON shops.id = product_infos.shop_id").
		Where("shops.user_id = ?", managerID)
	orderIDs := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_items.order_id").
		Where("order_items.product_info_id IN (?)", managed)

	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB {
			return db.Where("order_items.product_info_id IN (?)", managed).Order("order_items.id ASC")
		}).
		Preload("OrderItems.ProductInfo.Product.Category").
		Preload("OrderItems.ProductInfo.Shop").
		Preload("OrderItems.ProductInfo.ProductParameters.Parameter").
		Where("state <> ? AND id IN (?)", enums.OrderStateBasket, orderIDs).
		Order("dt DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	if err := preloadOrder(r.db.WithContext(ctx)).Where("id = ?", orderID).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateState applies a transition only if the order is still in from.
func (r *repository) UpdateState(ctx context.Context, orderID int64, from, to enums.OrderState) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND state = ?", orderID, from).
		UpdateColumns(map[string]any{"state": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

type orderTotal struct {
	OrderID int64
	Total   int64
}

// Totals sums quantity × price per order. When managerID is set only lines
// from that manager's shops count.
func (r *repository) Totals(ctx context.Context, orderIDs []int64, managerID *uuid.UUID) (map[int64]int64, error) {
	out := make(map[int64]int64, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	query := r.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.order_id AS order_id, COALESCE(SUM(order_items.quantity * product_infos.price), 0) AS total").
		Joins("JOIN product_infos ON product_infos.id = order_items.product_info_id")
	if managerID != nil {
		query = query.
			Joins("JOIN shops ON shops.id = product_infos.shop_id").
			Where("shops.user_id = ?", *managerID)
	}
	var rows []orderTotal
	if err := query.
		Where("order_items.order_id IN ?", orderIDs).
		Group("order_items.order_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = row.Total
	}
	return out, nil
}

// DeleteStaleBaskets removes up to limit empty baskets untouched since
// cutoff. A basket holding lines is never purged.
func (r *repository) DeleteStaleBaskets(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}
	stale := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("id").
		Where("state = ? AND updated_at < ?", enums.OrderStateBasket, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id)").
		Order("updated_at ASC").
		Limit(limit)
	res := r.db.WithContext(ctx).
		Where("id IN (?)", stale).
		Delete(&models.Order{})
	return res.RowsAffected, res.Error
}

func (r *repository) basketIDs(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("id").
		Where("user_id = ? AND state = ?", userID, enums.OrderStateBasket)
}

func preloadOrder(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Contact").
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("OrderItems.ProductInfo.Product.Category").
		Preload("OrderItems.ProductInfo.Shop").
		Preload("OrderItems.ProductInfo.ProductParameters.Parameter")
}
