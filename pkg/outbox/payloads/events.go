package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// OrderConfirmationRequestedEvent asks for the "order placed" email after checkout.
type OrderConfirmationRequestedEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	OrderID  int64     `json:"order_id"`
	TotalSum int64     `json:"total_sum"`
}

// OrderStateChangedEvent is emitted when staff move an order through its lifecycle.
type OrderStateChangedEvent struct {
	OrderID       int64            `json:"order_id"`
	UserID        uuid.UUID        `json:"user_id"`
	PreviousState enums.OrderState `json:"previous_state"`
	State         enums.OrderState `json:"state"`
	ChangedBy     uuid.UUID        `json:"changed_by"`
}

// UserRegisteredEvent carries what the confirmation email needs.
type UserRegisteredEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Token     string    `json:"token"`
}

// PasswordResetRequestedEvent carries the reset token to mail to the account owner.
type PasswordResetRequestedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Token     string    `json:"token"`
}

// CatalogIngestedEvent summarizes a completed supplier catalog import.
type CatalogIngestedEvent struct {
	ShopID            int64     `json:"shop_id"`
	ShopName          string    `json:"shop_name"`
	UserID            uuid.UUID `json:"user_id"`
	CategoriesLinked  int       `json:"categories_linked"`
	GoodsCreated      int       `json:"goods_created"`
	ParametersCreated int       `json:"parameters_created"`
}
