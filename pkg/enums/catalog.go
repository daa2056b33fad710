package enums

import "strings"

// ProductStatus gates whether a product or one of its variants can be sold.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

var productStatuses = set[ProductStatus]{ProductStatusActive, ProductStatusInactive}

func (s ProductStatus) String() string { return string(s) }
func (s ProductStatus) IsValid() bool  { return productStatuses.has(s) }

// Currency is the ISO 4217 code on carts, orders and payments.
type Currency string

const (
	CurrencyVND Currency = "VND"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var currencies = set[Currency]{CurrencyVND, CurrencyUSD, CurrencyEUR}

func (c Currency) String() string { return string(c) }
func (c Currency) IsValid() bool  { return currencies.has(c) }

// ParseCurrency accepts any case and surrounding space.
func ParseCurrency(value string) (Currency, error) {
	return currencies.parse("currency", strings.ToUpper(strings.TrimSpace(value)))
}
