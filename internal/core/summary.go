package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the inflow/outflow balance for a set of transactions,
// usually one period. Outflow is negative.
type Summary struct {
	Period  Period          `json:"period"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// SeriesPoint is one time-series value: the summed amount of all
// transactions sharing date, direction and (optionally) category.
type SeriesPoint struct {
	Date      Date            `json:"date"`
	Direction Direction       `json:"direction"`
	Category  string          `json:"category,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}
