package service

import (
	"context"
	"strings"

	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) RecordPayment(ctx context.Context, saleID string, req saledomain.PaymentRequest) (*saledomain.Response, error) {
	if !req.Amount.IsPositive() {
		return nil, saledomain.ErrInvalidPaymentAmount
	}
	method, err := parsePaymentMethod(req.Method)
	if err != nil {
		return nil, err
	}

	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status == saledomain.StatusCancelled {
			return saledomain.ErrSaleClosed
		}
		now := s.clock.Now()
		payment := &saledomain.SalePayment{
			ID:        s.genID.Generate(),
			SaleID:    sale.ID,
			Amount:    req.Amount,
			PaidAt:    now,
			Method:    method,
			Reference: strings.TrimSpace(req.Reference),
			CreatedAt: now,
		}
		if req.PaidAt != nil {
			payment.PaidAt = req.PaidAt.UTC()
		}
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		s.log.Info("sale payment recorded",
			zap.String("sale_id", sale.ID.String()),
			zap.String("payment_id", payment.ID.String()),
			zap.String("amount", payment.Amount.StringFixed(2)),
		)
		return nil
	})
}

func (s *Service) RemovePayment(ctx context.Context, saleID, paymentID string) (*saledomain.Response, error) {
	id, err := parseID(paymentID)
	if err != nil {
		return nil, err
	}
	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		payment, err := s.repo.FindPayment(ctx, tx, sale.ID, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return saledomain.ErrNotFound
		}
		return s.repo.DeletePayment(ctx, tx, sale.ID, id)
	})
}

func parsePaymentMethod(value string) (saledomain.PaymentMethod, error) {
	switch saledomain.PaymentMethod(strings.ToLower(strings.TrimSpace(value))) {
	case saledomain.MethodCash:
		return saledomain.MethodCash, nil
	case saledomain.MethodBankTransfer:
		return saledomain.MethodBankTransfer, nil
	case saledomain.MethodCard:
		return saledomain.MethodCard, nil
	case saledomain.MethodOther, "":
		return saledomain.MethodOther, nil
	default:
		return "", saledomain.ErrInvalidPaymentMethod
	}
}
