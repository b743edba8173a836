package models

import "time"

const OrderStatusSucceeded = "succeeded"

// OrderLine is a purchased line as settled by the payment provider. Amounts are minor units.
type OrderLine struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unitAmount"`
	AmountTotal int64  `json:"amountTotal"`
	Currency    string `json:"currency"`
}

// OrderRecord is an immutable ledger entry; ExternalSessionID is unique.
type OrderRecord struct {
	ID                int64       `json:"id"`
	OwnerEmail        string      `json:"ownerEmail"`
	LineItems         []OrderLine `json:"lineItems"`
	CreatedAt         time.Time   `json:"createdAt"`
	Status            string      `json:"status"`
	ExternalSessionID string      `json:"externalSessionId"`
	TotalAmount       int64       `json:"totalAmount"`
	Currency          string      `json:"currency"`
}

// SumLineItems returns the sum of UnitAmount * Quantity.
func SumLineItems(lines []OrderLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.UnitAmount * l.Quantity
	}
	return total
}
