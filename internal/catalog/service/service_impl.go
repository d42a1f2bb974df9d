package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	"github.com/glitchidea/glichflow/internal/observability/metrics"
	"github.com/glitchidea/glichflow/internal/pricing"
	"github.com/glitchidea/glichflow/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    catalogdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    catalogdomain.Repository
	genID   *snowflake.Node
	metrics *metrics.Metrics
}

func New(p Params) catalogdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("catalog.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) CreateGroup(ctx context.Context, req catalogdomain.GroupRequest) (*catalogdomain.PackageGroup, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	group := &catalogdomain.PackageGroup{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertGroup(ctx, s.db, group); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrGroupNameTaken
		}
		return nil, err
	}
	return group, nil
}

func (s *Service) ListGroups(ctx context.Context) ([]catalogdomain.PackageGroup, error) {
	return s.repo.ListGroups(ctx, s.db)
}

func (s *Service) GetGroup(ctx context.Context, id string) (*catalogdomain.GroupDetail, error) {
	group, err := s.findGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	pkgs, err := s.repo.ListPackages(ctx, s.db, group.ID)
	if err != nil {
		return nil, err
	}
	svcs, err := s.repo.ListExtraServices(ctx, s.db, group.ID, false)
	if err != nil {
		return nil, err
	}
	return &catalogdomain.GroupDetail{
		PackageGroup:  *group,
		Packages:      nonNil(pkgs),
		ExtraServices: nonNil(svcs),
	}, nil
}

func (s *Service) UpdateGroup(ctx context.Context, id string, req catalogdomain.GroupRequest) (*catalogdomain.PackageGroup, error) {
	group, err := s.findGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		group.Name = name
	}
	group.Description = strings.TrimSpace(req.Description)
	group.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateGroup(ctx, s.db, group); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrGroupNameTaken
		}
		return nil, err
	}
	return group, nil
}

func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	group, err := s.findGroup(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.DeleteGroup(ctx, tx, group.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info("package group deleted", zap.String("group_id", group.ID.String()))
	return nil
}

func (s *Service) CreatePackage(ctx context.Context, groupID string, req catalogdomain.PackageRequest) (*catalogdomain.Package, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if req.Name == nil || req.BasePrice == nil {
		return nil, catalogdomain.ErrInvalidPackage
	}

	now := time.Now().UTC()
	pkg := &catalogdomain.Package{
		ID:        s.genID.Generate(),
		GroupID:   group.ID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyPackageRequest(pkg, req)
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}

	if err := s.repo.InsertPackage(ctx, s.db, pkg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrPackageNameTaken
		}
		return nil, err
	}
	return pkg, nil
}

func (s *Service) ListPackages(ctx context.Context, groupID string) ([]catalogdomain.Package, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	pkgs, err := s.repo.ListPackages(ctx, s.db, group.ID)
	if err != nil {
		return nil, err
	}
	return nonNil(pkgs), nil
}

func (s *Service) GetPackage(ctx context.Context, id string) (*catalogdomain.Package, error) {
	pkgID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	pkg, err := s.repo.FindPackageByID(ctx, s.db, pkgID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return pkg, nil
}

func (s *Service) UpdatePackage(ctx context.Context, id string, req catalogdomain.PackageRequest) (*catalogdomain.Package, error) {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	applyPackageRequest(pkg, req)
	if err := validatePackage(pkg); err != nil {
		return nil, err
	}
	pkg.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdatePackage(ctx, s.db, pkg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrPackageNameTaken
		}
		return nil, err
	}
	return pkg, nil
}

func (s *Service) DeletePackage(ctx context.Context, id string) error {
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.DeletePackage(ctx, s.db, pkg.ID)
}

func (s *Service) CreateExtraService(ctx context.Context, groupID string, req catalogdomain.ExtraServiceRequest) (*catalogdomain.ExtraService, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if req.Name == nil || req.PricingType == nil || req.InputType == nil {
		return nil, catalogdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	svc := &catalogdomain.ExtraService{
		ID:              s.genID.Generate(),
		GroupID:         group.ID,
		MinQuantity:     1,
		MaxQuantity:     1,
		DefaultQuantity: 1,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := applyExtraServiceRequest(svc, req); err != nil {
		return nil, err
	}
	if err := validateExtraService(svc); err != nil {
		return nil, err
	}

	if err := s.repo.InsertExtraService(ctx, s.db, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) ListExtraServices(ctx context.Context, groupID string, activeOnly bool) ([]catalogdomain.ExtraService, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	svcs, err := s.repo.ListExtraServices(ctx, s.db, group.ID, activeOnly)
	if err != nil {
		return nil, err
	}
	return nonNil(svcs), nil
}

func (s *Service) GetExtraService(ctx context.Context, id string) (*catalogdomain.ExtraService, error) {
	svcID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	svc, err := s.repo.FindExtraServiceByID(ctx, s.db, svcID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return svc, nil
}

func (s *Service) UpdateExtraService(ctx context.Context, id string, req catalogdomain.ExtraServiceRequest) (*catalogdomain.ExtraService, error) {
	svc, err := s.GetExtraService(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyExtraServiceRequest(svc, req); err != nil {
		return nil, err
	}
	if err := validateExtraService(svc); err != nil {
		return nil, err
	}
	svc.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateExtraService(ctx, s.db, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) DeleteExtraService(ctx context.Context, id string) error {
	svc, err := s.GetExtraService(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.DeleteExtraService(ctx, s.db, svc.ID)
}

// Quote previews the price of a package plus selected extras of the same group.
func (s *Service) Quote(ctx context.Context, req catalogdomain.QuoteRequest) (*pricing.Quote, error) {
	group, err := s.findGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}

	basePrice := decimal.Zero
	if strings.TrimSpace(req.PackageID) != "" {
		pkg, err := s.GetPackage(ctx, req.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg.GroupID != group.ID {
			return nil, catalogdomain.ErrInvalidPackage
		}
		basePrice = pkg.BasePrice
	}
	if req.BasePrice != nil {
		basePrice = *req.BasePrice
	}

	svcs, err := s.repo.ListExtraServices(ctx, s.db, group.ID, false)
	if err != nil {
		return nil, err
	}
	rules := make([]pricing.ServiceRule, 0, len(svcs))
	for _, svc := range svcs {
		rules = append(rules, svc.Rule())
	}
	selections := make([]pricing.Selection, 0, len(req.Selections))
	for _, sel := range req.Selections {
		selections = append(selections, pricing.Selection{
			ServiceID: strings.TrimSpace(sel.ExtraServiceID),
			Quantity:  sel.Quantity,
			Option:    strings.TrimSpace(sel.Option),
		})
	}

	quote, err := pricing.QuoteExtraServices(basePrice, rules, selections)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordQuoteComputed(ctx)
	return &quote, nil
}

func (s *Service) findGroup(ctx context.Context, id string) (*catalogdomain.PackageGroup, error) {
	groupID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	group, err := s.repo.FindGroupByID(ctx, s.db, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return group, nil
}

func applyPackageRequest(pkg *catalogdomain.Package, req catalogdomain.PackageRequest) {
	if req.Name != nil {
		pkg.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		pkg.Description = strings.TrimSpace(*req.Description)
	}
	if req.BasePrice != nil {
		pkg.BasePrice = *req.BasePrice
	}
	if req.ExtraPagesMultiplier != nil {
		pkg.ExtraPagesMultiplier = decimal.NewNullDecimal(*req.ExtraPagesMultiplier)
	}
	if req.IsActive != nil {
		pkg.IsActive = *req.IsActive
	}
}

func validatePackage(pkg *catalogdomain.Package) error {
	if pkg.Name == "" {
		return catalogdomain.ErrInvalidName
	}
	if pricing.ValidateNonNegative(pkg.BasePrice) != nil {
		return catalogdomain.ErrInvalidPrice
	}
	if pkg.ExtraPagesMultiplier.Valid && pricing.ValidateNonNegative(pkg.ExtraPagesMultiplier.Decimal) != nil {
		return catalogdomain.ErrInvalidMultiplier
	}
	return nil
}

func applyExtraServiceRequest(svc *catalogdomain.ExtraService, req catalogdomain.ExtraServiceRequest) error {
	if req.Name != nil {
		svc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		svc.Description = strings.TrimSpace(*req.Description)
	}
	if req.PricingType != nil {
		pt, ok := pricing.ParsePricingType(*req.PricingType)
		if !ok {
			return catalogdomain.ErrInvalidPricingType
		}
		svc.PricingType = pt
	}
	if req.InputType != nil {
		it, err := parseInputType(*req.InputType)
		if err != nil {
			return err
		}
		svc.InputType = it
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	if req.Percentage != nil {
		svc.Percentage = *req.Percentage
	}
	if req.MinQuantity != nil {
		svc.MinQuantity = *req.MinQuantity
	}
	if req.MaxQuantity != nil {
		svc.MaxQuantity = *req.MaxQuantity
	}
	if req.DefaultQuantity != nil {
		svc.DefaultQuantity = *req.DefaultQuantity
	}
	if req.Options != nil {
		opts := make([]catalogdomain.Option, 0, len(*req.Options))
		for _, opt := range *req.Options {
			opt.Value = strings.TrimSpace(opt.Value)
			opt.Label = strings.TrimSpace(opt.Label)
			opts = append(opts, opt)
		}
		svc.Options = opts
	}
	if req.IsRequired != nil {
		svc.IsRequired = *req.IsRequired
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if req.Order != nil {
		svc.SortOrder = *req.Order
	}
	return nil
}

func validateExtraService(svc *catalogdomain.ExtraService) error {
	if svc.Name == "" {
		return catalogdomain.ErrInvalidName
	}
	if _, ok := pricing.ParsePricingType(string(svc.PricingType)); !ok {
		return catalogdomain.ErrInvalidPricingType
	}
	if pricing.ValidateNonNegative(svc.Price) != nil {
		return catalogdomain.ErrInvalidPrice
	}
	if pricing.ValidateNonNegative(svc.Percentage) != nil {
		return catalogdomain.ErrInvalidPercentage
	}
	if svc.MinQuantity < 1 || svc.MaxQuantity < svc.MinQuantity {
		return catalogdomain.ErrInvalidQuantityBounds
	}
	if err := pricing.ValidateQuantity(svc.DefaultQuantity, svc.MinQuantity, svc.MaxQuantity); err != nil {
		return catalogdomain.ErrInvalidQuantityBounds
	}

	if svc.InputType != catalogdomain.InputSelect {
		return nil
	}
	if len(svc.Options) == 0 {
		return catalogdomain.ErrInvalidOptions
	}
	seen := make(map[string]struct{}, len(svc.Options))
	for _, opt := range svc.Options {
		if opt.Value == "" || pricing.ValidateNonNegative(opt.Price) != nil {
			return catalogdomain.ErrInvalidOptions
		}
		if _, dup := seen[opt.Value]; dup {
			return catalogdomain.ErrInvalidOptions
		}
		seen[opt.Value] = struct{}{}
	}
	return nil
}

func parseInputType(raw string) (catalogdomain.InputType, error) {
	switch catalogdomain.InputType(strings.ToLower(strings.TrimSpace(raw))) {
	case catalogdomain.InputCheckbox:
		return catalogdomain.InputCheckbox, nil
	case catalogdomain.InputRadio:
		return catalogdomain.InputRadio, nil
	case catalogdomain.InputNumber:
		return catalogdomain.InputNumber, nil
	case catalogdomain.InputSelect:
		return catalogdomain.InputSelect, nil
	default:
		return "", catalogdomain.ErrInvalidInputType
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, catalogdomain.ErrInvalidID
	}
	return id, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

