package enums

// OrderStatus is the fulfillment-facing lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = set[OrderStatus]{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return orderStatuses.has(s) }

// IsCancellable is true until the order starts processing.
func (s OrderStatus) IsCancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// OrderPaymentStatus summarizes settlement on the order row.
type OrderPaymentStatus string

const (
	OrderPaymentStatusPending  OrderPaymentStatus = "pending"
	OrderPaymentStatusPaid     OrderPaymentStatus = "paid"
	OrderPaymentStatusFailed   OrderPaymentStatus = "failed"
	OrderPaymentStatusRefunded OrderPaymentStatus = "refunded"
)

var orderPaymentStatuses = set[OrderPaymentStatus]{
	OrderPaymentStatusPending,
	OrderPaymentStatusPaid,
	OrderPaymentStatusFailed,
	OrderPaymentStatusRefunded,
}

func (s OrderPaymentStatus) String() string { return string(s) }
func (s OrderPaymentStatus) IsValid() bool  { return orderPaymentStatuses.has(s) }

// OrderType is derived once at checkout from the digital flags of the lines.
type OrderType string

const (
	OrderTypePhysical OrderType = "physical"
	OrderTypeDigital  OrderType = "digital"
	OrderTypeMixed    OrderType = "mixed"
)

var orderTypes = set[OrderType]{OrderTypePhysical, OrderTypeDigital, OrderTypeMixed}

func (t OrderType) String() string { return string(t) }
func (t OrderType) IsValid() bool  { return orderTypes.has(t) }

func (t OrderType) HasPhysical() bool { return t == OrderTypePhysical || t == OrderTypeMixed }
func (t OrderType) HasDigital() bool  { return t == OrderTypeDigital || t == OrderTypeMixed }

// ShippingStatus tracks the physical leg. Digital-only orders stay pending.
type ShippingStatus string

const (
	ShippingStatusPending   ShippingStatus = "pending"
	ShippingStatusShipped   ShippingStatus = "shipped"
	ShippingStatusDelivered ShippingStatus = "delivered"
)

var shippingStatuses = set[ShippingStatus]{ShippingStatusPending, ShippingStatusShipped, ShippingStatusDelivered}

func (s ShippingStatus) String() string { return string(s) }
func (s ShippingStatus) IsValid() bool  { return shippingStatuses.has(s) }
