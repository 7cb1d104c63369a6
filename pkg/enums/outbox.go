package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateUser  OutboxAggregateType = "user"
	AggregateShop  OutboxAggregateType = "shop"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateUser, AggregateShop}

func (a OutboxAggregateType) IsValid() bool { return member(a, aggregateTypes) }

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventOrderConfirmationRequested OutboxEventType = "order_confirmation_requested"
	EventOrderStateChanged          OutboxEventType = "order_state_changed"
	EventUserRegistered             OutboxEventType = "user_registered"
	EventPasswordResetRequested     OutboxEventType = "password_reset_requested"
	EventCatalogIngested            OutboxEventType = "catalog_ingested"
)

var eventTypes = []OutboxEventType{
	EventOrderConfirmationRequested,
	EventOrderStateChanged,
	EventUserRegistered,
	EventPasswordResetRequested,
	EventCatalogIngested,
}

func (e OutboxEventType) IsValid() bool { return member(e, eventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, eventTypes)
}

// OutboxDLQErrorReason records why a row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
