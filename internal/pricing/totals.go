package pricing

import "github.com/shopspring/decimal"

type LineItem struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Cost struct {
	Amount decimal.Decimal
}

type Totals struct {
	BasePrice            decimal.Decimal `json:"base_price"`
	ExtraServicesTotal   decimal.Decimal `json:"extra_services_total"`
	AdditionalCostsTotal decimal.Decimal `json:"additional_costs_total"`
	FinalPrice           decimal.Decimal `json:"final_price"`
}

// RecomputeSaleTotals derives the aggregate fields of a sale from its full
// child set. It never adjusts a previous total incrementally.
func RecomputeSaleTotals(items []LineItem, costs []Cost, basePrice decimal.Decimal) Totals {
	extras := decimal.Zero
	for _, item := range items {
		extras = extras.Add(LineTotal(item.UnitPrice, item.Quantity))
	}

	additional := decimal.Zero
	for _, cost := range costs {
		additional = additional.Add(cost.Amount)
	}

	return Totals{
		BasePrice:            basePrice,
		ExtraServicesTotal:   extras,
		AdditionalCostsTotal: additional,
		FinalPrice:           basePrice.Add(extras).Add(additional),
	}
}

// Consistent reports whether final = base + extras + additional.
func (t Totals) Consistent() bool {
	return t.FinalPrice.Equal(t.BasePrice.Add(t.ExtraServicesTotal).Add(t.AdditionalCostsTotal))
}
