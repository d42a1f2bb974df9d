package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputeExtraServicePrice(t *testing.T) {
	cases := []struct {
		name        string
		pricingType PricingType
		price       string
		percentage  string
		base        string
		quantity    int
		want        string
	}{
		{name: "fixed ignores quantity", pricingType: PricingTypeFixed, price: "150.00", percentage: "0", base: "0", quantity: 3, want: "150.00"},
		{name: "percentage of base times quantity", pricingType: PricingTypePercentage, price: "0", percentage: "15.00", base: "1000.00", quantity: 2, want: "300.00"},
		{name: "percentage zero", pricingType: PricingTypePercentage, price: "99", percentage: "0", base: "1000.00", quantity: 4, want: "0"},
		{name: "per page", pricingType: PricingTypePerPage, price: "25.00", percentage: "0", base: "0", quantity: 4, want: "100.00"},
		{name: "per hour", pricingType: PricingTypePerHour, price: "12.50", percentage: "0", base: "0", quantity: 8, want: "100.00"},
		{name: "per unit", pricingType: PricingTypePerUnit, price: "0.10", percentage: "0", base: "0", quantity: 3, want: "0.30"},
		{name: "per day", pricingType: PricingTypePerDay, price: "40", percentage: "0", base: "0", quantity: 2, want: "80"},
		{name: "per month", pricingType: PricingTypePerMonth, price: "10", percentage: "0", base: "0", quantity: 12, want: "120"},
		{name: "per year", pricingType: PricingTypePerYear, price: "100", percentage: "0", base: "0", quantity: 2, want: "200"},
		{name: "unknown type", pricingType: PricingType("per_galaxy"), price: "100", percentage: "10", base: "1000", quantity: 5, want: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeExtraServicePrice(tc.pricingType, d(tc.price), d(tc.percentage), d(tc.base), tc.quantity)
			assert.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestComputeExtraServicePriceIsDeterministic(t *testing.T) {
	first := ComputeExtraServicePrice(PricingTypePercentage, d("0"), d("12.5"), d("1999.99"), 3)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(ComputeExtraServicePrice(PricingTypePercentage, d("0"), d("12.5"), d("1999.99"), 3)))
	}
	assert.True(t, first.Equal(d("749.99625")))
}

func TestValidateQuantityBounds(t *testing.T) {
	assert.NoError(t, ValidateQuantity(1, 1, 10))
	assert.NoError(t, ValidateQuantity(10, 1, 10))
	assert.ErrorIs(t, ValidateQuantity(11, 1, 10), ErrQuantityOutOfRange)
	assert.ErrorIs(t, ValidateQuantity(2, 3, 10), ErrQuantityOutOfRange)
	assert.ErrorIs(t, ValidateQuantity(0, 1, 10), ErrInvalidQuantity)
}

func TestParsePricingType(t *testing.T) {
	pt, ok := ParsePricingType(" Per_Page ")
	assert.True(t, ok)
	assert.Equal(t, PricingTypePerPage, pt)

	_, ok = ParsePricingType("weekly")
	assert.False(t, ok)
}

func TestValidateNonNegative(t *testing.T) {
	assert.NoError(t, ValidateNonNegative(d("0"), d("1.5")))
	assert.ErrorIs(t, ValidateNonNegative(d("1"), d("-0.01")), ErrNegativeAmount)
}

func TestCatalogLine(t *testing.T) {
	unit, qty := CatalogLine(PricingTypeFixed, d("150"), d("0"), d("0"), 3)
	assert.True(t, unit.Equal(d("150")))
	assert.Equal(t, 1, qty)

	unit, qty = CatalogLine(PricingTypePercentage, d("0"), d("15"), d("1000"), 2)
	assert.True(t, unit.Equal(d("150")))
	assert.Equal(t, 2, qty)
	assert.True(t, LineTotal(unit, qty).Equal(ComputeExtraServicePrice(PricingTypePercentage, d("0"), d("15"), d("1000"), 2)))
}
