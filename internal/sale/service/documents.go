package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/providers/pdf"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func (s *Service) QuotePDF(ctx context.Context, id string) (*saledomain.Document, error) {
	saleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	resp, err := s.load(ctx, s.db, saleID)
	if err != nil {
		return nil, err
	}

	doc := pdf.QuoteDocument{
		Company:              s.pdfCompany(),
		QuoteNumber:          quoteNumber(saleID),
		QuoteDate:            resp.QuoteDate.Format(dateLayout),
		Status:               resp.Status,
		CustomerName:         resp.CustomerName,
		ProjectName:          resp.ProjectName,
		Notes:                resp.Notes,
		BasePrice:            s.money(resp.BasePrice),
		ExtraServicesTotal:   s.money(resp.ExtraServicesTotal),
		AdditionalCostsTotal: s.money(resp.AdditionalCostsTotal),
		FinalPrice:           s.money(resp.FinalPrice),
	}
	if resp.DeliveryDate != nil {
		doc.DeliveryDate = resp.DeliveryDate.Format(dateLayout)
	}
	if resp.BasePackageID != nil {
		pkgID, _ := snowflake.ParseString(*resp.BasePackageID)
		pkg, err := s.catalogRepo.FindPackageByID(ctx, s.db, pkgID)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			doc.PackageName = pkg.Name
		}
	}
	for _, item := range resp.ExtraServices {
		desc := item.ServiceName
		if item.Option != "" {
			desc += " (" + item.Option + ")"
		}
		doc.Lines = append(doc.Lines, pdf.Line{
			Description: desc,
			Qty:         item.Quantity,
			UnitPrice:   s.money(item.UnitPrice),
			Amount:      s.money(item.TotalPrice),
		})
	}
	for _, cost := range resp.AdditionalCosts {
		doc.Costs = append(doc.Costs, pdf.Line{
			Description: cost.Name + " [" + cost.CostType + "]",
			Qty:         1,
			UnitPrice:   s.money(cost.Cost),
			Amount:      s.money(cost.Cost),
		})
	}

	content, err := s.pdf.RenderQuote(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("render quote: %w", err)
	}
	return &saledomain.Document{
		Filename: fmt.Sprintf("quote-%s-%s.pdf", slug.Make(resp.ProjectName), saleID.String()),
		Content:  content,
	}, nil
}

func (s *Service) PaymentReceiptPDF(ctx context.Context, saleID, paymentID string) (*saledomain.Document, error) {
	sid, err := parseID(saleID)
	if err != nil {
		return nil, err
	}
	pid, err := parseID(paymentID)
	if err != nil {
		return nil, err
	}
	resp, err := s.load(ctx, s.db, sid)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindPayment(ctx, s.db, sid, pid)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, saledomain.ErrNotFound
	}

	content, err := s.pdf.RenderPaymentReceipt(ctx, pdf.ReceiptDocument{
		Company:      s.pdfCompany(),
		QuoteNumber:  quoteNumber(sid),
		CustomerName: resp.CustomerName,
		ProjectName:  resp.ProjectName,
		PaidAt:       payment.PaidAt.Format(dateLayout),
		Method:       string(payment.Method),
		Reference:    payment.Reference,
		Amount:       s.money(payment.Amount),
		FinalPrice:   s.money(resp.FinalPrice),
		PaidTotal:    s.money(resp.PaidTotal),
		BalanceDue:   s.money(resp.BalanceDue),
	})
	if err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return &saledomain.Document{
		Filename: fmt.Sprintf("receipt-%s.pdf", pid.String()),
		Content:  content,
	}, nil
}

func (s *Service) pdfCompany() pdf.Company {
	return pdf.Company{Name: s.company.Name, Address: s.company.Address, Email: s.company.Email}
}

func (s *Service) money(v decimal.Decimal) string {
	if s.company.Currency == "" {
		return v.StringFixed(2)
	}
	return v.StringFixed(2) + " " + s.company.Currency
}

func quoteNumber(id snowflake.ID) string {
	return "Q-" + id.String()
}
