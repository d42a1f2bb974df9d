// Package pricing holds the pure quote arithmetic. Nothing here touches the
// database; callers load rows, call these functions and persist the results.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type PricingType string

const (
	PricingTypeFixed      PricingType = "fixed"
	PricingTypePercentage PricingType = "percentage"
	PricingTypePerUnit    PricingType = "per_unit"
	PricingTypePerPage    PricingType = "per_page"
	PricingTypePerHour    PricingType = "per_hour"
	PricingTypePerDay     PricingType = "per_day"
	PricingTypePerMonth   PricingType = "per_month"
	PricingTypePerYear    PricingType = "per_year"
)

var PricingTypes = []PricingType{
	PricingTypeFixed,
	PricingTypePercentage,
	PricingTypePerUnit,
	PricingTypePerPage,
	PricingTypePerHour,
	PricingTypePerDay,
	PricingTypePerMonth,
	PricingTypePerYear,
}

var (
	ErrQuantityOutOfRange = errors.New("quantity_out_of_range")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrNegativeAmount     = errors.New("negative_amount")
)

var hundred = decimal.NewFromInt(100)

// ParsePricingType normalizes raw input. ok is false for values outside the
// known set.
func ParsePricingType(raw string) (PricingType, bool) {
	candidate := PricingType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range PricingTypes {
		if candidate == known {
			return candidate, true
		}
	}
	return candidate, false
}

// ComputeExtraServicePrice returns the contribution of one extra service to
// a quote.
//
//	fixed       price
//	percentage  basePrice * percentage / 100 * quantity
//	per_*       price * quantity
//
// Unknown pricing types contribute zero. Callers that can see the row should
// log the anomaly; write paths reject unknown types before they are stored.
func ComputeExtraServicePrice(pricingType PricingType, price, percentage, basePrice decimal.Decimal, quantity int) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	switch pricingType {
	case PricingTypeFixed:
		return price
	case PricingTypePercentage:
		return basePrice.Mul(percentage).Div(hundred).Mul(qty)
	case PricingTypePerUnit, PricingTypePerPage, PricingTypePerHour,
		PricingTypePerDay, PricingTypePerMonth, PricingTypePerYear:
		return price.Mul(qty)
	default:
		return decimal.Zero
	}
}

// CatalogLine converts a catalog service selection into the unit price and
// quantity stored on a sale line, so that LineTotal(unit, qty) equals
// ComputeExtraServicePrice for the requested quantity. Fixed services ignore
// quantity and are always stored as a single unit.
func CatalogLine(pricingType PricingType, price, percentage, basePrice decimal.Decimal, quantity int) (decimal.Decimal, int) {
	unit := ComputeExtraServicePrice(pricingType, price, percentage, basePrice, 1)
	if pricingType == PricingTypeFixed {
		return unit, 1
	}
	return unit, quantity
}

// LineTotal is unit_price * quantity for a sale line.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ValidateQuantity checks quantity against inclusive [min, max] bounds.
func ValidateQuantity(quantity, min, max int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if quantity < min || quantity > max {
		return ErrQuantityOutOfRange
	}
	return nil
}

// ValidateNonNegative rejects negative money amounts at the boundary.
func ValidateNonNegative(amounts ...decimal.Decimal) error {
	for _, amount := range amounts {
		if amount.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}
