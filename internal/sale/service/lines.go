package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	"github.com/glitchidea/glichflow/internal/pricing"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) AddExtraService(ctx context.Context, saleID string, req saledomain.ItemRequest) (*saledomain.Response, error) {
	catalogID := strings.TrimSpace(req.ExtraServiceID)
	customName := strings.TrimSpace(req.CustomServiceName)
	if (catalogID == "") == (customName == "") {
		return nil, saledomain.ErrInvalidLine
	}
	if req.UnitPrice != nil && pricing.ValidateNonNegative(*req.UnitPrice) != nil {
		return nil, saledomain.ErrInvalidPrice
	}

	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status.Terminal() {
			return saledomain.ErrSaleClosed
		}

		now := s.clock.Now()
		item := &saledomain.SaleExtraService{
			ID:         s.genID.Generate(),
			SaleID:     sale.ID,
			IsApproved: req.IsApproved,
			Notes:      strings.TrimSpace(req.Notes),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if catalogID != "" {
			if err := s.fillCatalogLine(ctx, tx, sale, item, catalogID, req); err != nil {
				return err
			}
		} else {
			if req.UnitPrice == nil {
				return saledomain.ErrInvalidPrice
			}
			qty := req.Quantity
			if qty == 0 {
				qty = 1
			}
			if qty < 1 {
				return saledomain.ErrInvalidQuantity
			}
			item.CustomServiceName = &customName
			item.ServiceName = customName
			item.Quantity = qty
			item.UnitPrice = *req.UnitPrice
		}
		item.TotalPrice = pricing.LineTotal(item.UnitPrice, item.Quantity)

		if err := s.repo.InsertItem(ctx, tx, item); err != nil {
			return err
		}
		return s.recompute(ctx, tx, sale, "extra_service")
	})
}

// fillCatalogLine prices a line from the catalog row. A unit price in the
// request overrides the computed one.
func (s *Service) fillCatalogLine(
	ctx context.Context,
	tx *gorm.DB,
	sale *saledomain.ProjectSale,
	item *saledomain.SaleExtraService,
	rawID string,
	req saledomain.ItemRequest,
) error {
	svcID, err := parseID(rawID)
	if err != nil {
		return saledomain.ErrInvalidExtraService
	}
	svc, err := s.catalogRepo.FindExtraServiceByID(ctx, tx, svcID)
	if err != nil {
		return err
	}
	if svc == nil {
		return saledomain.ErrInvalidExtraService
	}
	if !svc.IsActive {
		return saledomain.ErrInactiveExtraService
	}
	if err := s.checkServiceGroup(ctx, tx, sale, svc); err != nil {
		return err
	}

	qty := req.Quantity
	if qty == 0 {
		qty = svc.DefaultQuantity
	}
	if pricing.ValidateQuantity(qty, svc.MinQuantity, svc.MaxQuantity) != nil {
		return saledomain.ErrInvalidQuantity
	}

	price := svc.Price
	option := strings.TrimSpace(req.Option)
	if svc.InputType == catalogdomain.InputSelect {
		found := false
		for _, opt := range svc.Options {
			if opt.Value == option {
				price = opt.Price
				found = true
				break
			}
		}
		if !found {
			return saledomain.ErrInvalidOption
		}
	}

	if _, known := pricing.ParsePricingType(string(svc.PricingType)); !known {
		s.log.Warn("extra service has unknown pricing type, contributing zero",
			zap.String("extra_service_id", svc.ID.String()),
			zap.String("pricing_type", string(svc.PricingType)),
		)
	}

	unit, lineQty := pricing.CatalogLine(svc.PricingType, price, svc.Percentage, sale.BasePrice, qty)
	if req.UnitPrice != nil {
		unit = *req.UnitPrice
		item.PriceOverridden = true
	}

	id := svc.ID
	item.ExtraServiceID = &id
	item.ServiceName = svc.Name
	item.SelectedOption = option
	item.Quantity = lineQty
	item.UnitPrice = unit
	return nil
}

// checkServiceGroup keeps catalog lines inside the group of the base package.
func (s *Service) checkServiceGroup(ctx context.Context, tx *gorm.DB, sale *saledomain.ProjectSale, svc *catalogdomain.ExtraService) error {
	if sale.BasePackageID == nil {
		return nil
	}
	pkg, err := s.catalogRepo.FindPackageByID(ctx, tx, *sale.BasePackageID)
	if err != nil {
		return err
	}
	if pkg != nil && pkg.GroupID != svc.GroupID {
		return saledomain.ErrInvalidExtraService
	}
	return nil
}

func (s *Service) UpdateExtraService(ctx context.Context, saleID, itemID string, req saledomain.ItemUpdateRequest) (*saledomain.Response, error) {
	lineID, err := parseID(itemID)
	if err != nil {
		return nil, err
	}
	if req.UnitPrice != nil && pricing.ValidateNonNegative(*req.UnitPrice) != nil {
		return nil, saledomain.ErrInvalidPrice
	}

	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status.Terminal() {
			return saledomain.ErrSaleClosed
		}
		item, err := s.repo.FindItem(ctx, tx, sale.ID, lineID)
		if err != nil {
			return err
		}
		if item == nil {
			return saledomain.ErrNotFound
		}

		if req.Quantity != nil {
			qty, err := s.lineQuantity(ctx, tx, item, *req.Quantity)
			if err != nil {
				return err
			}
			item.Quantity = qty
		}
		if req.UnitPrice != nil {
			item.UnitPrice = *req.UnitPrice
			item.PriceOverridden = item.ExtraServiceID != nil
		}
		if req.IsApproved != nil {
			item.IsApproved = *req.IsApproved
		}
		if req.Notes != nil {
			item.Notes = strings.TrimSpace(*req.Notes)
		}
		item.TotalPrice = pricing.LineTotal(item.UnitPrice, item.Quantity)
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateItem(ctx, tx, item); err != nil {
			return err
		}
		return s.recompute(ctx, tx, sale, "extra_service")
	})
}

// lineQuantity validates a new quantity against the catalog bounds when the
// catalog row still exists. Fixed services stay at one unit.
func (s *Service) lineQuantity(ctx context.Context, tx *gorm.DB, item *saledomain.SaleExtraService, qty int) (int, error) {
	if qty < 1 {
		return 0, saledomain.ErrInvalidQuantity
	}
	if item.ExtraServiceID == nil {
		return qty, nil
	}
	svc, err := s.catalogRepo.FindExtraServiceByID(ctx, tx, *item.ExtraServiceID)
	if err != nil {
		return 0, err
	}
	if svc == nil {
		return qty, nil
	}
	if pricing.ValidateQuantity(qty, svc.MinQuantity, svc.MaxQuantity) != nil {
		return 0, saledomain.ErrInvalidQuantity
	}
	if svc.PricingType == pricing.PricingTypeFixed {
		return 1, nil
	}
	return qty, nil
}

func (s *Service) RemoveExtraService(ctx context.Context, saleID, itemID string) (*saledomain.Response, error) {
	lineID, err := parseID(itemID)
	if err != nil {
		return nil, err
	}
	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status.Terminal() {
			return saledomain.ErrSaleClosed
		}
		if err := s.requireItem(ctx, tx, sale.ID, lineID); err != nil {
			return err
		}
		if err := s.repo.DeleteItem(ctx, tx, sale.ID, lineID); err != nil {
			return err
		}
		return s.recompute(ctx, tx, sale, "extra_service")
	})
}

func (s *Service) requireItem(ctx context.Context, tx *gorm.DB, saleID, id snowflake.ID) error {
	item, err := s.repo.FindItem(ctx, tx, saleID, id)
	if err != nil {
		return err
	}
	if item == nil {
		return saledomain.ErrNotFound
	}
	return nil
}

func (s *Service) AddCost(ctx context.Context, saleID string, req saledomain.CostRequest) (*saledomain.Response, error) {
	if req.CostType == nil || req.Name == nil || req.Cost == nil {
		return nil, saledomain.ErrInvalidCostName
	}
	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status.Terminal() {
			return saledomain.ErrSaleClosed
		}
		now := s.clock.Now()
		cost := &saledomain.AdditionalCost{
			ID:        s.genID.Generate(),
			SaleID:    sale.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := applyCostRequest(cost, req); err != nil {
			return err
		}
		if err := s.repo.InsertCost(ctx, tx, cost); err != nil {
			return err
		}
		return s.recompute(ctx, tx, sale, "additional_cost")
	})
}

func (s *Service) UpdateCost(ctx context.Context, saleID, costID string, req saledomain.CostRequest) (*saledomain.Response, error) {
	id, err := parseID(costID)
	if err != nil {
		return nil, err
	}
	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status.Terminal() {
			return saledomain.ErrSaleClosed
		}
		cost, err := s.repo.FindCost(ctx, tx, sale.ID, id)
		if err != nil {
			return err
		}
		if cost == nil {
			return saledomain.ErrNotFound
		}
		if err := applyCostRequest(cost, req); err != nil {
			return err
		}
		cost.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateCost(ctx, tx, cost); err != nil {
			return err
		}
		return s.recompute(ctx, tx, sale, "additional_cost")
	})
}

func (s *Service) RemoveCost(ctx context.Context, saleID, costID string) (*saledomain.Response, error) {
	id, err := parseID(costID)
	if err != nil {
		return nil, err
	}
	return s.withLockedSale(ctx, saleID, func(tx *gorm.DB, sale *saledomain.ProjectSale) error {
		if sale.Status.Terminal() {
			return saledomain.ErrSaleClosed
		}
		cost, err := s.repo.FindCost(ctx, tx, sale.ID, id)
		if err != nil {
			return err
		}
		if cost == nil {
			return saledomain.ErrNotFound
		}
		if err := s.repo.DeleteCost(ctx, tx, sale.ID, id); err != nil {
			return err
		}
		return s.recompute(ctx, tx, sale, "additional_cost")
	})
}

func applyCostRequest(cost *saledomain.AdditionalCost, req saledomain.CostRequest) error {
	if req.CostType != nil {
		ct, err := parseCostType(*req.CostType)
		if err != nil {
			return err
		}
		cost.CostType = ct
	}
	if req.Name != nil {
		cost.Name = strings.TrimSpace(*req.Name)
		if cost.Name == "" {
			return saledomain.ErrInvalidCostName
		}
	}
	if req.Cost != nil {
		if pricing.ValidateNonNegative(*req.Cost) != nil {
			return saledomain.ErrInvalidPrice
		}
		cost.Cost = *req.Cost
	}
	if req.IsCustomerPaid != nil {
		cost.IsCustomerPaid = *req.IsCustomerPaid
	}
	if req.IsApproved != nil {
		cost.IsApproved = *req.IsApproved
	}
	if req.Notes != nil {
		cost.Notes = strings.TrimSpace(*req.Notes)
	}
	return nil
}

func parseCostType(value string) (saledomain.CostType, error) {
	candidate := saledomain.CostType(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range saledomain.CostTypes {
		if candidate == known {
			return candidate, nil
		}
	}
	return "", saledomain.ErrInvalidCostType
}
