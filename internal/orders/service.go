package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/authz"
	pkgdb "github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Service exposes basket and order operations.
type Service interface {
	GetBasket(ctx context.Context, userID uuid.UUID) (*OrderView, error)
	AddItems(ctx context.Context, userID uuid.UUID, items []ItemInput) (int, error)
	RemoveItems(ctx context.Context, userID uuid.UUID, ids []int64) (int, error)
	UpdateItems(ctx context.Context, userID uuid.UUID, items []RawItemUpdate) (UpdateResult, error)
	Checkout(ctx context.Context, userID uuid.UUID, orderID, contactID int64) (*CheckoutResult, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]OrderView, error)
	ListOrdersForSupplier(ctx context.Context, principal *authz.Principal) ([]OrderView, error)
	UpdateState(ctx context.Context, principal *authz.Principal, update StateUpdate) (*OrderView, error)
}

// ServiceParams groups the orders service dependencies.
type ServiceParams struct {
	Repo   Repository
	TX     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
	Clock  func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds an orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.TX,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    clock,
	}, nil
}

func (s *service) GetBasket(ctx context.Context, userID uuid.UUID) (*OrderView, error) {
	basket, err := s.repo.FindBasket(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load basket")
	}
	if basket == nil {
		return nil, nil
	}
	totals, err := s.repo.Totals(ctx, []int64{basket.ID}, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute basket total")
	}
	view := orderView(*basket, totals[basket.ID])
	return &view, nil
}

// AddItems adds every item or none of them.
func (s *service) AddItems(ctx context.Context, userID uuid.UUID, items []ItemInput) (int, error) {
	if len(items) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}

	created := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductInfoID)
		}
		infos, err := repo.FindProductInfos(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product infos")
		}
		byID := make(map[int64]models.ProductInfo, len(infos))
		for _, info := range infos {
			byID[info.ID] = info
		}

		var errs error
		for i, item := range items {
			if item.Quantity < 1 {
				errs = multierr.Append(errs, fmt.Errorf("items[%d]: quantity must be at least 1", i))
				continue
			}
			if item.Quantity > MaxQuantity {
				errs = multierr.Append(errs, fmt.Errorf("items[%d]: quantity must not exceed %d", i, MaxQuantity))
				continue
			}
			info, ok := byID[item.ProductInfoID]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("items[%d]: product info %d not found", i, item.ProductInfoID))
				continue
			}
			if info.Shop == nil || !info.Shop.State {
				errs = multierr.Append(errs, fmt.Errorf("items[%d]: shop is not accepting orders", i))
			}
		}
		if errs != nil {
			return pkgerrors.Combine(pkgerrors.CodeValidation, errs, "invalid basket items")
		}

		basket, err := repo.UpsertBasket(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert basket")
		}
		rows := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			rows = append(rows, models.OrderItem{
				OrderID:       basket.ID,
				ProductInfoID: item.ProductInfoID,
				Quantity:      item.Quantity,
			})
		}
		if err := repo.CreateItems(ctx, rows); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product is already in the basket")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create basket items")
		}
		created = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *service) RemoveItems(ctx context.Context, userID uuid.UUID, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	deleted, err := s.repo.DeleteBasketItems(ctx, userID, ids)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete basket items")
	}
	return int(deleted), nil
}

// UpdateItems applies quantity changes to basket lines. Malformed entries are
// skipped and counted instead of failing the call.
func (s *service) UpdateItems(ctx context.Context, userID uuid.UUID, items []RawItemUpdate) (UpdateResult, error) {
	var result UpdateResult
	if len(items) == 0 {
		return result, pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, raw := range items {
			itemID, quantity, ok := parseItemUpdate(raw)
			if !ok {
				result.Skipped++
				continue
			}
			n, err := repo.UpdateBasketItemQuantity(ctx, userID, itemID, quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update basket item")
			}
			result.Updated += int(n)
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, orderID, contactID int64) (*CheckoutResult, error) {
	var result *CheckoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		owned, err := repo.ContactBelongsTo(ctx, contactID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check contact")
		}
		if !owned {
			return pkgerrors.New(pkgerrors.CodeInvalidArgs, "contact not found")
		}

		updated, err := repo.SubmitBasket(ctx, userID, orderID, contactID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "submit basket")
		}
		if updated == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidArgs, "basket not found")
		}

		count, err := repo.CountItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count basket items")
		}
		if count == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "basket is empty")
		}

		totals, err := repo.Totals(ctx, []int64{orderID}, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute order total")
		}
		total := totals[orderID]

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(orderID, 10),
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderConfirmationRequestedEvent{
				UserID:   userID,
				OrderID:  orderID,
				TotalSum: total,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order confirmation event")
		}

		result = &CheckoutResult{OrderID: orderID, State: enums.OrderStateNew, TotalSum: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithField(s.logg.WithOrderID(ctx, orderID), "total_sum", result.TotalSum)
		s.logg.Info(logCtx, "order.checkout")
	}
	return result, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]OrderView, error) {
	rows, err := s.repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return s.views(ctx, rows, nil)
}

// ListOrdersForSupplier shows a shop manager the orders that include their
// listings. Lines and totals cover the manager's shops only.
func (s *service) ListOrdersForSupplier(ctx context.Context, principal *authz.Principal) ([]OrderView, error) {
	if err := authz.RequireRole(principal, enums.RoleShop); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSupplierOrders(ctx, principal.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list supplier orders")
	}
	managerID := principal.UserID
	return s.views(ctx, rows, &managerID)
}

// UpdateState is the staff path through confirmed, assembled, sent,
// delivered and canceled.
func (s *service) UpdateState(ctx context.Context, principal *authz.Principal, update StateUpdate) (*OrderView, error) {
	if err := authz.RequireRole(principal, enums.RoleStaff); err != nil {
		return nil, err
	}
	if !update.State.IsAdministrative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state cannot be set directly").
			WithDetails(map[string]any{"state": update.State})
	}

	var view *OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, update.OrderID)
		if err != nil {
			if pkgdb.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.State == enums.OrderStateBasket {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "basket has not been submitted")
		}

		previous := order.State
		if previous != update.State {
			n, err := repo.UpdateState(ctx, order.ID, previous, update.State)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order state")
			}
			if n == 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderStateChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   strconv.FormatInt(order.ID, 10),
				Actor:         &outbox.ActorRef{UserID: principal.UserID, Role: string(principal.Role)},
				Data: payloads.OrderStateChangedEvent{
					OrderID:       order.ID,
					UserID:        order.UserID,
					PreviousState: previous,
					State:         update.State,
					ChangedBy:     principal.UserID,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order state event")
			}
			order.State = update.State
		}

		totals, err := repo.Totals(ctx, []int64{order.ID}, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute order total")
		}
		v := orderView(*order, totals[order.ID])
		view = &v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) views(ctx context.Context, rows []models.Order, managerID *uuid.UUID) ([]OrderView, error) {
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	totals, err := s.repo.Totals(ctx, ids, managerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute order totals")
	}
	out := make([]OrderView, 0, len(rows))
	for _, row := range rows {
		out = append(out, orderView(row, totals[row.ID]))
	}
	return out, nil
}

// parseItemUpdate accepts only JSON integers for id and quantity.
func parseItemUpdate(raw RawItemUpdate) (int64, int, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var entry map[string]any
	if err := dec.Decode(&entry); err != nil {
		return 0, 0, false
	}
	id, ok := jsonInt(entry["id"])
	if !ok || id < 1 {
		return 0, 0, false
	}
	quantity, ok := jsonInt(entry["quantity"])
	if !ok || quantity < 1 || quantity > MaxQuantity {
		return 0, 0, false
	}
	return id, int(quantity), true
}

func jsonInt(v any) (int64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}
