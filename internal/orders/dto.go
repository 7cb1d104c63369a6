package orders

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/internal/pricing"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// MaxQuantity is the largest line quantity order_items can store.
const MaxQuantity = math.MaxInt32

// ItemInput is one line to add to the basket.
type ItemInput struct {
	ProductInfoID int64
	Quantity      int
}

// RawItemUpdate is an unparsed {"id": ..., "quantity": ...} entry.
// Entries that do not carry integer values are skipped rather than rejected.
type RawItemUpdate json.RawMessage

// UpdateResult counts applied and skipped basket updates.
type UpdateResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// CheckoutResult is returned after a basket becomes an order.
type CheckoutResult struct {
	OrderID  int64            `json:"order_id"`
	State    enums.OrderState `json:"state"`
	TotalSum int64            `json:"total_sum"`
}

// OrderItemView is one order line with its listing.
type OrderItemView struct {
	ID          int64                  `json:"id"`
	Quantity    int                    `json:"quantity"`
	LineTotal   int64                  `json:"line_total"`
	ProductInfo catalog.ProductInfoDTO `json:"product_info"`
}

// OrderView is an order or basket with lines and total.
type OrderView struct {
	ID       int64                `json:"id"`
	UserID   uuid.UUID            `json:"user_id"`
	State    enums.OrderState     `json:"state"`
	Dt       time.Time            `json:"dt"`
	Contact  *contacts.ContactDTO `json:"contact,omitempty"`
	Items    []OrderItemView      `json:"ordered_items"`
	TotalSum int64                `json:"total_sum"`
}

// StateUpdate is a staff order state change.
type StateUpdate struct {
	OrderID int64
	State   enums.OrderState
}

func orderView(order models.Order, total int64) OrderView {
	view := OrderView{
		ID:       order.ID,
		UserID:   order.UserID,
		State:    order.State,
		Dt:       order.Dt,
		Items:    make([]OrderItemView, 0, len(order.OrderItems)),
		TotalSum: total,
	}
	if order.Contact != nil {
		contact := contacts.FromModel(*order.Contact)
		view.Contact = &contact
	}
	for _, item := range order.OrderItems {
		line := OrderItemView{ID: item.ID, Quantity: item.Quantity}
		if item.ProductInfo != nil {
			line.ProductInfo = catalog.ProductInfoFromModel(*item.ProductInfo)
			line.LineTotal = pricing.LineTotal(item.Quantity, item.ProductInfo.Price)
		}
		view.Items = append(view.Items, line)
	}
	return view
}
