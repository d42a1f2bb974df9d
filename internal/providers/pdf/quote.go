package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type QuoteDocument struct {
	Company      Company
	QuoteNumber  string
	QuoteDate    string
	DeliveryDate string
	Status       string
	CustomerName string
	ProjectName  string
	PackageName  string
	Notes        string

	BasePrice string
	Lines     []Line
	Costs     []Line

	ExtraServicesTotal   string
	AdditionalCostsTotal string
	FinalPrice           string
}

func (r *MarotoRenderer) RenderQuote(_ context.Context, q QuoteDocument) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(8, "Quote", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, q.QuoteNumber, props.Text{Size: 10, Align: align.Right, Top: 4}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(q.Company.Name, props.Text{Style: fontstyle.Bold}),
			text.New(q.Company.Address, props.Text{Top: 5}),
			text.New(q.Company.Email, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Prepared for", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(q.CustomerName, props.Text{Top: 5, Align: align.Right}),
			text.New(q.ProjectName, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(16,
		col.New(12).Add(
			text.New("Quote date: "+q.QuoteDate, props.Text{Size: 9}),
			text.New("Delivery date: "+orDash(q.DeliveryDate), props.Text{Size: 9, Top: 4}),
			text.New("Status: "+q.Status, props.Text{Size: 9, Top: 8}),
		),
	)

	lineHeader(m)
	base := "Base price"
	if q.PackageName != "" {
		base = "Package: " + q.PackageName
	}
	lineRow(m, Line{Description: base, Qty: 1, UnitPrice: q.BasePrice, Amount: q.BasePrice})
	for _, l := range q.Lines {
		lineRow(m, l)
	}
	if len(q.Costs) > 0 {
		m.AddRow(8, text.NewCol(12, "Additional costs", props.Text{Style: fontstyle.Bold, Size: 9, Top: 2}))
		for _, c := range q.Costs {
			lineRow(m, c)
		}
	}

	m.AddRow(4, line.NewCol(12))
	totalRow(m, "Extra services", q.ExtraServicesTotal, false)
	totalRow(m, "Additional costs", q.AdditionalCostsTotal, false)
	totalRow(m, "Total", q.FinalPrice, true)

	if q.Notes != "" {
		m.AddRow(20, text.NewCol(12, q.Notes, props.Text{Size: 8, Top: 6}))
	}

	return generate(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func lineHeader(m core.Maroto) {
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
}

func lineRow(m core.Maroto, l Line) {
	m.AddRow(8,
		text.NewCol(6, l.Description, props.Text{Size: 9}),
		text.NewCol(2, fmt.Sprintf("%d", l.Qty), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, l.UnitPrice, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, l.Amount, props.Text{Size: 9, Align: align.Right}),
	)
}

func totalRow(m core.Maroto, label, amount string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, amount, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
