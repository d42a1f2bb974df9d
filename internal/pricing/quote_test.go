package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteRules() []ServiceRule {
	return []ServiceRule{
		{ID: "seo", Name: "SEO", PricingType: PricingTypeFixed, Price: d("150"), MinQuantity: 1, MaxQuantity: 1, DefaultQuantity: 1, IsActive: true},
		{ID: "pages", Name: "Extra pages", PricingType: PricingTypePerPage, Price: d("25"), MinQuantity: 1, MaxQuantity: 10, DefaultQuantity: 1, IsActive: true},
		{ID: "rush", Name: "Rush", PricingType: PricingTypePercentage, Percentage: d("15"), MinQuantity: 1, MaxQuantity: 2, DefaultQuantity: 1, IsActive: true},
		{ID: "ssl", Name: "SSL", PricingType: PricingTypeFixed, Price: d("20"), MinQuantity: 1, MaxQuantity: 1, DefaultQuantity: 1, IsActive: true, IsRequired: true},
		{ID: "hosting", Name: "Hosting", PricingType: PricingTypePerYear, MinQuantity: 1, MaxQuantity: 5, DefaultQuantity: 1, IsActive: true,
			Options: map[string]decimal.Decimal{"basic": d("50"), "pro": d("120")}},
		{ID: "legacy", Name: "Legacy", PricingType: PricingTypeFixed, Price: d("5"), MinQuantity: 1, MaxQuantity: 1, DefaultQuantity: 1},
	}
}

func TestQuoteExtraServices(t *testing.T) {
	quote, err := QuoteExtraServices(d("1000"), quoteRules(), []Selection{
		{ServiceID: "seo"},
		{ServiceID: "pages", Quantity: 4},
		{ServiceID: "rush", Quantity: 2},
		{ServiceID: "hosting", Quantity: 2, Option: "pro"},
	})
	require.NoError(t, err)

	// 150 + 100 + 300 + 240 + 20 (required ssl)
	assert.True(t, quote.Totals.ExtraServicesTotal.Equal(d("810")), quote.Totals.ExtraServicesTotal.String())
	assert.True(t, quote.Totals.FinalPrice.Equal(d("1810")))
	require.Len(t, quote.Lines, 5)
	assert.Equal(t, "ssl", quote.Lines[4].ServiceID)
}

func TestQuoteExtraServicesRejectsOutOfRangeQuantity(t *testing.T) {
	_, err := QuoteExtraServices(d("1000"), quoteRules(), []Selection{{ServiceID: "pages", Quantity: 11}})
	assert.ErrorIs(t, err, ErrQuantityOutOfRange)

	var qe *QuoteError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "pages", qe.ServiceID)

	_, err = QuoteExtraServices(d("1000"), quoteRules(), []Selection{{ServiceID: "pages", Quantity: 10}})
	assert.NoError(t, err)
}

func TestQuoteExtraServicesErrors(t *testing.T) {
	_, err := QuoteExtraServices(d("1000"), quoteRules(), []Selection{{ServiceID: "legacy"}})
	assert.ErrorIs(t, err, ErrInactiveService)

	_, err = QuoteExtraServices(d("1000"), quoteRules(), []Selection{{ServiceID: "nope"}})
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = QuoteExtraServices(d("1000"), quoteRules(), []Selection{{ServiceID: "hosting", Option: "enterprise"}})
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = QuoteExtraServices(d("-1"), quoteRules(), nil)
	assert.ErrorIs(t, err, ErrNegativeAmount)
}
