package models

import "github.com/shopspring/decimal"

type CartLine struct {
	ItemNumber int64           `json:"itemNumber"`
	OwnerEmail string          `json:"ownerEmail"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Name       string          `json:"name"`
	ImageRef   string          `json:"imageRef"`
}

// LineTotal is UnitPrice * Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type FavoriteEntry struct {
	ItemNumber int64  `json:"itemNumber"`
	OwnerEmail string `json:"ownerEmail"`
}

// CheckoutLine is one line of the cart snapshot sent to checkout.
type CheckoutLine struct {
	Name      string          `json:"name"`
	ImageRef  string          `json:"imageRef"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int64           `json:"quantity"`
}
