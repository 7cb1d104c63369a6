package enums

// OrderState tracks an order from basket through delivery.
type OrderState string

const (
	OrderStateBasket    OrderState = "basket"
	OrderStateNew       OrderState = "new"
	OrderStateConfirmed OrderState = "confirmed"
	OrderStateAssembled OrderState = "assembled"
	OrderStateSent      OrderState = "sent"
	OrderStateDelivered OrderState = "delivered"
	OrderStateCanceled  OrderState = "canceled"
)

// administrativeStates are the states staff may set by hand. basket and new
// are only ever reached through the basket and checkout flows.
var administrativeStates = []OrderState{
	OrderStateConfirmed,
	OrderStateAssembled,
	OrderStateSent,
	OrderStateDelivered,
	OrderStateCanceled,
}

var orderStates = append([]OrderState{OrderStateBasket, OrderStateNew}, administrativeStates...)

func (s OrderState) String() string { return string(s) }

func (s OrderState) IsValid() bool { return member(s, orderStates) }

func (s OrderState) IsAdministrative() bool { return member(s, administrativeStates) }

func ParseOrderState(value string) (OrderState, error) {
	return parse("order state", value, orderStates)
}
