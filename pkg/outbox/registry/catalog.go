package registry

import (
	"encoding/json"

	"github.com/angelmondragon/shopcore-backend/pkg/config"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/outbox/payloads"
)

// route picks one of the configured topics.
type route int

const (
	routeOrders route = iota
	routePayments
	routeFulfillment
)

func (r route) topic(cfg config.PubSubConfig) string {
	switch r {
	case routePayments:
		return cfg.PaymentsTopic
	case routeFulfillment:
		return cfg.FulfillmentTopic
	}
	return cfg.OrdersTopic
}

// catalogEntry is everything both the relay and the consumers know about one
// event type at payload version 1.
type catalogEntry struct {
	eventType  enums.OutboxEventType
	aggregate  enums.OutboxAggregateType
	route      route
	newPayload func() any
	decode     decoderFunc
}

func entry[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, r route) catalogEntry {
	return catalogEntry{
		eventType:  eventType,
		aggregate:  aggregate,
		route:      r,
		newPayload: func() any { return new(T) },
		decode:     decodeAs[T],
	}
}

var catalog = []catalogEntry{
	entry[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, routeOrders),
	entry[payloads.OrderCanceledEvent](enums.EventOrderCanceled, enums.AggregateOrder, routeOrders),
	entry[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder, routePayments),
	entry[payloads.PaymentStatusEvent](enums.EventPaymentFailed, enums.AggregatePayment, routePayments),
	entry[payloads.PaymentStatusEvent](enums.EventPaymentRefunded, enums.AggregatePayment, routePayments),
	entry[payloads.PaymentStatusEvent](enums.EventPaymentRefundRequired, enums.AggregatePayment, routePayments),
	entry[payloads.DigitalDeliveryRequestedEvent](enums.EventDigitalDeliveryRequested, enums.AggregateOrder, routeFulfillment),
}

func decodeAs[T any](payload json.RawMessage) (any, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
