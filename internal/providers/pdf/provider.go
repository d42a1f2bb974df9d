// Package pdf renders sale documents with maroto.
package pdf

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Renderer interface {
	RenderQuote(ctx context.Context, doc QuoteDocument) ([]byte, error)
	RenderPaymentReceipt(ctx context.Context, doc ReceiptDocument) ([]byte, error)
}

// Company is printed in the document header.
type Company struct {
	Name    string
	Address string
	Email   string
}

type Line struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

type MarotoRenderer struct{}

func New() Renderer {
	return &MarotoRenderer{}
}
