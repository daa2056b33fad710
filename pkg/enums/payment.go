package enums

import "slices"

// PaymentMethod is how a buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodVNPay        PaymentMethod = "vnpay"
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodSquare       PaymentMethod = "square"
)

var paymentMethods = set[PaymentMethod]{
	PaymentMethodCOD,
	PaymentMethodBankTransfer,
	PaymentMethodVNPay,
	PaymentMethodStripe,
	PaymentMethodSquare,
}

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return paymentMethods.has(p) }

// Type: online methods settle through a gateway callback; offline ones get a
// pending payment inside the checkout transaction.
func (p PaymentMethod) Type() PaymentMethodType {
	switch p {
	case PaymentMethodVNPay, PaymentMethodStripe, PaymentMethodSquare:
		return PaymentMethodTypeOnline
	}
	return PaymentMethodTypeOffline
}

func (p PaymentMethod) IsOnline() bool { return p.Type() == PaymentMethodTypeOnline }

// OnlinePaymentMethods lists the gateway-settled methods.
func OnlinePaymentMethods() []PaymentMethod {
	return slices.DeleteFunc(slices.Clone(paymentMethods), func(p PaymentMethod) bool { return !p.IsOnline() })
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", value)
}

// PaymentMethodType separates gateway-settled payments from manual ones.
type PaymentMethodType string

const (
	PaymentMethodTypeOnline  PaymentMethodType = "online"
	PaymentMethodTypeOffline PaymentMethodType = "offline"
)

func (p PaymentMethodType) String() string { return string(p) }

// PaymentStatus is the lifecycle of one payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

var paymentStatuses = set[PaymentStatus]{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// paymentStatusTransitions is the whole state machine. A failed attempt may
// be retried; refunded is final.
var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {PaymentStatusPending, PaymentStatusProcessing},
	PaymentStatusRefunded:   {},
}

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return paymentStatuses.has(p) }

// AllowedTransitions returns a copy of the statuses reachable in one step.
func (p PaymentStatus) AllowedTransitions() []PaymentStatus {
	return slices.Clone(paymentStatusTransitions[p])
}

func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentStatusTransitions[p], next)
}

func (p PaymentStatus) IsTerminal() bool {
	return p.IsValid() && len(paymentStatusTransitions[p]) == 0
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
