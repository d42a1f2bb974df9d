package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	"github.com/glitchidea/glichflow/internal/clock"
	"github.com/glitchidea/glichflow/internal/config"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/pricing"
	"github.com/glitchidea/glichflow/internal/providers/pdf"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"github.com/glitchidea/glichflow/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	// MaxFileSize bounds a single attachment or receipt upload.
	MaxFileSize = 20 << 20
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        saledomain.Repository
	CatalogRepo catalogdomain.Repository
	Storage     storage.ObjectStore
	PDF         pdf.Renderer
	Config      config.Config
	Clock       clock.Clock      `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        saledomain.Repository
	catalogRepo catalogdomain.Repository
	storage     storage.ObjectStore
	pdf         pdf.Renderer
	company     config.CompanyConfig
	genID       *snowflake.Node
	clock       clock.Clock
	metrics     *metrics.Metrics
}

func New(p Params) saledomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("sale.service"),
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		storage:     p.Storage,
		pdf:         p.PDF,
		company:     p.Config.Company,
		genID:       p.GenID,
		clock:       clk,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req saledomain.CreateRequest) (*saledomain.Response, error) {
	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		return nil, saledomain.ErrInvalidCustomer
	}
	project := strings.TrimSpace(req.ProjectName)
	if project == "" {
		return nil, saledomain.ErrInvalidProject
	}
	if err := validateDates(req.StartDate, req.DeliveryDate); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sale := &saledomain.ProjectSale{
		ID:                   s.genID.Generate(),
		CustomerName:         customer,
		ProjectName:          project,
		BasePrice:            decimal.Zero,
		ExtraServicesTotal:   decimal.Zero,
		AdditionalCostsTotal: decimal.Zero,
		Status:               saledomain.StatusDraft,
		QuoteDate:            now,
		StartDate:            req.StartDate,
		DeliveryDate:         req.DeliveryDate,
		Notes:                strings.TrimSpace(req.Notes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.QuoteDate != nil {
		sale.QuoteDate = req.QuoteDate.UTC()
	}
	if strings.TrimSpace(req.CreatedBy) != "" {
		createdBy, err := parseID(req.CreatedBy)
		if err != nil {
			return nil, err
		}
		sale.CreatedBy = &createdBy
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyBase(ctx, tx, sale, optionalString(req.BasePackageID), req.BasePrice); err != nil {
			return err
		}
		sale.FinalPrice = sale.BasePrice
		return s.repo.Insert(ctx, tx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("customer", sale.CustomerName),
	)
	return s.load(ctx, s.db, sale.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*saledomain.Response, error) {
	saleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, saleID)
}

func (s *Service) List(ctx context.Context, req saledomain.ListRequest) ([]saledomain.Summary, error) {
	filter := saledomain.ListFilter{
		Customer: strings.ToLower(strings.TrimSpace(req.Customer)),
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := parseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	sales, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]saledomain.Summary, 0, len(sales))
	for _, sale := range sales {
		resp = append(resp, saledomain.Summary{
			ID:           sale.ID.String(),
			CustomerName: sale.CustomerName,
			ProjectName:  sale.ProjectName,
			Status:       string(sale.Status),
			FinalPrice:   sale.FinalPrice,
			QuoteDate:    sale.QuoteDate,
			DeliveryDate: sale.DeliveryDate,
		})
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, id string, req saledomain.UpdateRequest) (*saledomain.Response, error) {
	return s.withLockedSale(ctx, id, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if req.CustomerName != nil {
			sale.CustomerName = strings.TrimSpace(*req.CustomerName)
			if sale.CustomerName == "" {
				return saledomain.ErrInvalidCustomer
			}
		}
		if req.ProjectName != nil {
			sale.ProjectName = strings.TrimSpace(*req.ProjectName)
			if sale.ProjectName == "" {
				return saledomain.ErrInvalidProject
			}
		}
		if req.QuoteDate != nil {
			sale.QuoteDate = req.QuoteDate.UTC()
		}
		if req.StartDate != nil {
			sale.StartDate = req.StartDate
		}
		if req.DeliveryDate != nil {
			sale.DeliveryDate = req.DeliveryDate
		}
		if err := validateDates(sale.StartDate, sale.DeliveryDate); err != nil {
			return err
		}
		if req.Notes != nil {
			sale.Notes = strings.TrimSpace(*req.Notes)
		}

		previousBase := sale.BasePrice
		if req.BasePackageID != nil || req.BasePrice != nil {
			if sale.Status.Terminal() {
				return saledomain.ErrSaleClosed
			}
			if err := s.applyBase(ctx, tx, sale, req.BasePackageID, req.BasePrice); err != nil {
				return err
			}
		}

		sale.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, sale); err != nil {
			return err
		}
		if !sale.BasePrice.Equal(previousBase) {
			if err := s.repricePercentageLines(ctx, tx, sale); err != nil {
				return err
			}
			return s.recompute(ctx, tx, sale, "base_price")
		}
		return nil
	})
}

func (s *Service) TransitionStatus(ctx context.Context, id string, status string) (*saledomain.Response, error) {
	next, err := parseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.withLockedSale(ctx, id, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status == next {
			return nil
		}
		if !sale.Status.CanTransitionTo(next) {
			return saledomain.ErrInvalidTransition
		}
		previous := sale.Status
		now := s.clock.Now()
		sale.Status = next
		sale.UpdatedAt = now
		if next == saledomain.StatusInProgress && sale.StartDate == nil {
			sale.StartDate = &now
		}
		if err := s.repo.Update(ctx, tx, sale); err != nil {
			return err
		}
		s.log.Info("sale status changed",
			zap.String("sale_id", sale.ID.String()),
			zap.String("from", string(previous)),
			zap.String("to", string(next)),
		)
		return nil
	})
}

// Delete removes the sale with its children, then the stored files.
func (s *Service) Delete(ctx context.Context, id string) error {
	saleID, err := parseID(id)
	if err != nil {
		return err
	}

	var files []saledomain.SaleFile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := s.repo.FindByIDForUpdate(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return saledomain.ErrNotFound
		}
		files, err = s.repo.ListFiles(ctx, tx, saleID)
		if err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, saleID)
	})
	if err != nil {
		return err
	}

	for _, file := range files {
		s.deleteObject(ctx, file.ObjectKey)
	}
	s.log.Info("sale deleted", zap.String("sale_id", saleID.String()), zap.Int("files", len(files)))
	return nil
}

// withLockedSale runs fn in a transaction holding the sale row lock and
// returns the committed state.
func (s *Service) withLockedSale(ctx context.Context, id string, fn func(tx *gorm.DB, sale *saledomain.ProjectSale) error) (*saledomain.Response, error) {
	saleID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := s.repo.FindByIDForUpdate(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return saledomain.ErrNotFound
		}
		return fn(tx, sale)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, saleID)
}

// recompute rebuilds the aggregate from the full child set. It must run
// inside the transaction that mutated the children.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, sale *saledomain.ProjectSale, source string) error {
	items, err := s.repo.ListItems(ctx, tx, sale.ID)
	if err != nil {
		return err
	}
	costs, err := s.repo.ListCosts(ctx, tx, sale.ID)
	if err != nil {
		return err
	}

	lines := make([]pricing.LineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.LineItem{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	amounts := make([]pricing.Cost, 0, len(costs))
	for _, cost := range costs {
		amounts = append(amounts, pricing.Cost{Amount: cost.Cost})
	}

	totals := pricing.RecomputeSaleTotals(lines, amounts, sale.BasePrice)
	if !totals.Consistent() {
		return saledomain.ErrTotalsInconsistent
	}
	sale.ExtraServicesTotal = totals.ExtraServicesTotal
	sale.AdditionalCostsTotal = totals.AdditionalCostsTotal
	sale.FinalPrice = totals.FinalPrice
	sale.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateTotals(ctx, tx, sale); err != nil {
		return err
	}
	s.metrics.RecordSaleRecompute(ctx, source)
	return nil
}

// applyBase sets the base package and price. A chosen package supplies the
// price unless one is given explicitly.
func (s *Service) applyBase(ctx context.Context, tx *gorm.DB, sale *saledomain.ProjectSale, packageID *string, basePrice *decimal.Decimal) error {
	if packageID != nil {
		raw := strings.TrimSpace(*packageID)
		if raw == "" {
			sale.BasePackageID = nil
		} else {
			pkgID, err := parseID(raw)
			if err != nil {
				return saledomain.ErrInvalidPackage
			}
			pkg, err := s.catalogRepo.FindPackageByID(ctx, tx, pkgID)
			if err != nil {
				return err
			}
			if pkg == nil {
				return saledomain.ErrInvalidPackage
			}
			sale.BasePackageID = &pkg.ID
			if basePrice == nil {
				sale.BasePrice = pkg.BasePrice
			}
		}
	}
	if basePrice != nil {
		if pricing.ValidateNonNegative(*basePrice) != nil {
			return saledomain.ErrInvalidPrice
		}
		sale.BasePrice = *basePrice
	}
	return nil
}

// repricePercentageLines refreshes catalog lines whose price is a share of
// the base price. Lines with a manual unit price keep it.
func (s *Service) repricePercentageLines(ctx context.Context, tx *gorm.DB, sale *saledomain.ProjectSale) error {
	items, err := s.repo.ListItems(ctx, tx, sale.ID)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if item.ExtraServiceID == nil || item.PriceOverridden {
			continue
		}
		svc, err := s.catalogRepo.FindExtraServiceByID(ctx, tx, *item.ExtraServiceID)
		if err != nil {
			return err
		}
		if svc == nil || svc.PricingType != pricing.PricingTypePercentage {
			continue
		}
		unit, _ := pricing.CatalogLine(svc.PricingType, svc.Price, svc.Percentage, sale.BasePrice, item.Quantity)
		item.UnitPrice = unit
		item.TotalPrice = pricing.LineTotal(unit, item.Quantity)
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateItem(ctx, tx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*saledomain.Response, error) {
	sale, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, saledomain.ErrNotFound
	}
	items, err := s.repo.ListItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	costs, err := s.repo.ListCosts(ctx, db, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, db, id)
	if err != nil {
		return nil, err
	}
	files, err := s.repo.ListFiles(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return toResponse(sale, items, costs, payments, files), nil
}

func (s *Service) deleteObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete stored object", zap.String("key", key), zap.Error(err))
	}
}

func toResponse(
	sale *saledomain.ProjectSale,
	items []saledomain.SaleExtraService,
	costs []saledomain.AdditionalCost,
	payments []saledomain.SalePayment,
	files []saledomain.SaleFile,
) *saledomain.Response {
	resp := &saledomain.Response{
		ID:                   sale.ID.String(),
		CustomerName:         sale.CustomerName,
		ProjectName:          sale.ProjectName,
		BasePrice:            sale.BasePrice,
		ExtraServicesTotal:   sale.ExtraServicesTotal,
		AdditionalCostsTotal: sale.AdditionalCostsTotal,
		FinalPrice:           sale.FinalPrice,
		Status:               string(sale.Status),
		QuoteDate:            sale.QuoteDate,
		StartDate:            sale.StartDate,
		DeliveryDate:         sale.DeliveryDate,
		Notes:                sale.Notes,
		ExtraServices:        make([]saledomain.ItemResponse, 0, len(items)),
		AdditionalCosts:      make([]saledomain.CostResponse, 0, len(costs)),
		Payments:             make([]saledomain.PaymentResponse, 0, len(payments)),
		Files:                make([]saledomain.FileResponse, 0, len(files)),
		CreatedAt:            sale.CreatedAt,
		UpdatedAt:            sale.UpdatedAt,
	}
	if sale.BasePackageID != nil {
		v := sale.BasePackageID.String()
		resp.BasePackageID = &v
	}

	for _, item := range items {
		resp.ExtraServices = append(resp.ExtraServices, toItemResponse(item))
	}
	for _, cost := range costs {
		resp.AdditionalCosts = append(resp.AdditionalCosts, saledomain.CostResponse{
			ID:             cost.ID.String(),
			CostType:       string(cost.CostType),
			Name:           cost.Name,
			Cost:           cost.Cost,
			IsCustomerPaid: cost.IsCustomerPaid,
			IsApproved:     cost.IsApproved,
			Notes:          cost.Notes,
		})
	}
	paid := decimal.Zero
	for _, payment := range payments {
		paid = paid.Add(payment.Amount)
		resp.Payments = append(resp.Payments, saledomain.PaymentResponse{
			ID:        payment.ID.String(),
			Amount:    payment.Amount,
			PaidAt:    payment.PaidAt,
			Method:    string(payment.Method),
			Reference: payment.Reference,
		})
	}
	for _, file := range files {
		resp.Files = append(resp.Files, toFileResponse(file))
	}
	resp.PaidTotal = paid
	resp.BalanceDue = sale.FinalPrice.Sub(paid)
	return resp
}

func toItemResponse(item saledomain.SaleExtraService) saledomain.ItemResponse {
	resp := saledomain.ItemResponse{
		ID:                item.ID.String(),
		CustomServiceName: item.CustomServiceName,
		ServiceName:       item.ServiceName,
		Option:            item.SelectedOption,
		Quantity:          item.Quantity,
		UnitPrice:         item.UnitPrice,
		TotalPrice:        item.TotalPrice,
		IsApproved:        item.IsApproved,
		Notes:             item.Notes,
	}
	if item.ExtraServiceID != nil {
		v := item.ExtraServiceID.String()
		resp.ExtraServiceID = &v
	}
	return resp
}

func toFileResponse(file saledomain.SaleFile) saledomain.FileResponse {
	return saledomain.FileResponse{
		ID:           file.ID.String(),
		Kind:         string(file.Kind),
		OriginalName: file.OriginalName,
		ObjectKey:    file.ObjectKey,
		ContentType:  file.ContentType,
		Size:         file.Size,
		CreatedAt:    file.CreatedAt,
	}
}

func validateDates(start, delivery *time.Time) error {
	if start != nil && delivery != nil && delivery.Before(*start) {
		return saledomain.ErrInvalidDates
	}
	return nil
}

func optionalString(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, saledomain.ErrInvalidID
	}
	return id, nil
}

func parseStatus(value string) (saledomain.SaleStatus, error) {
	switch saledomain.SaleStatus(strings.ToLower(strings.TrimSpace(value))) {
	case saledomain.StatusDraft:
		return saledomain.StatusDraft, nil
	case saledomain.StatusQuoted:
		return saledomain.StatusQuoted, nil
	case saledomain.StatusInProgress:
		return saledomain.StatusInProgress, nil
	case saledomain.StatusCompleted:
		return saledomain.StatusCompleted, nil
	case saledomain.StatusCancelled:
		return saledomain.StatusCancelled, nil
	default:
		return "", saledomain.ErrInvalidStatus
	}
}
