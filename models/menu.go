package models

import "github.com/shopspring/decimal"

// MenuItem is owned by the catalog; the ordering core only reads it.
type MenuItem struct {
	ItemNumber   int64           `json:"itemNumber"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ImageRef     string          `json:"imageRef"`
	AddedByEmail string          `json:"addedByEmail"`
}

// CategoryAll disables the category filter.
const CategoryAll = "All"
