package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptDocument struct {
	Company      Company
	QuoteNumber  string
	CustomerName string
	ProjectName  string
	PaidAt       string
	Method       string
	Reference    string
	Amount       string
	FinalPrice   string
	PaidTotal    string
	BalanceDue   string
}

func (r *MarotoRenderer) RenderPaymentReceipt(_ context.Context, rc ReceiptDocument) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(8, "Payment receipt", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, rc.QuoteNumber, props.Text{Size: 10, Align: align.Right, Top: 4}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(rc.Company.Name, props.Text{Style: fontstyle.Bold}),
			text.New(rc.Company.Address, props.Text{Top: 5}),
			text.New(rc.Company.Email, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Received from", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(rc.CustomerName, props.Text{Top: 5, Align: align.Right}),
			text.New(rc.ProjectName, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, rc.Amount+" paid on "+rc.PaidAt, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)
	m.AddRow(12,
		col.New(12).Add(
			text.New("Method: "+rc.Method, props.Text{Size: 9}),
			text.New("Reference: "+orDash(rc.Reference), props.Text{Size: 9, Top: 4}),
		),
	)

	totalRow(m, "Project total", rc.FinalPrice, false)
	totalRow(m, "Paid to date", rc.PaidTotal, false)
	totalRow(m, "Balance due", rc.BalanceDue, true)

	return generate(m)
}
