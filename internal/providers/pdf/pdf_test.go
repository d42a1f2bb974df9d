package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQuote(t *testing.T) {
	r := New()
	out, err := r.RenderQuote(context.Background(), QuoteDocument{
		Company:      Company{Name: "Glitch Idea", Email: "hello@example.com"},
		QuoteNumber:  "Q-1",
		QuoteDate:    "2026-01-02",
		Status:       "draft",
		CustomerName: "Acme",
		ProjectName:  "Website",
		BasePrice:    "10000.00",
		Lines:        []Line{{Description: "Extra pages", Qty: 3, UnitPrice: "500.00", Amount: "1500.00"}},
		Costs:        []Line{{Description: "Hosting", Qty: 1, UnitPrice: "1200.00", Amount: "1200.00"}},
		FinalPrice:   "12700.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderPaymentReceipt(t *testing.T) {
	out, err := New().RenderPaymentReceipt(context.Background(), ReceiptDocument{
		CustomerName: "Acme",
		Amount:       "500.00",
		PaidAt:       "2026-01-03",
		Method:       "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}
