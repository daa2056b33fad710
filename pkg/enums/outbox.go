package enums

// OutboxAggregateType names the entity an outbox event is keyed on. Events
// for one aggregate share a Pub/Sub ordering key.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateOrder, AggregatePayment}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType enumerates the domain events written through the outbox.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventOrderPaid                OutboxEventType = "order_paid"
	EventPaymentFailed            OutboxEventType = "payment_failed"
	EventPaymentRefunded          OutboxEventType = "payment_refunded"
	EventPaymentRefundRequired    OutboxEventType = "payment_refund_required"
	EventOrderCanceled            OutboxEventType = "order_canceled"
	EventDigitalDeliveryRequested OutboxEventType = "digital_delivery_requested"
)

var outboxEventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderPaid,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventPaymentRefundRequired,
	EventOrderCanceled,
	EventDigitalDeliveryRequested,
}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

// ParseOutboxEventType is used for admin filters.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("event type", value)
}

// OutboxDLQErrorReason is why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqErrorReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqErrorReasons.has(r) }

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return dlqErrorReasons.parse("dead-letter reason", value)
}
