package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertGroup(ctx context.Context, db *gorm.DB, group *PackageGroup) error
	UpdateGroup(ctx context.Context, db *gorm.DB, group *PackageGroup) error
	DeleteGroup(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindGroupByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PackageGroup, error)
	ListGroups(ctx context.Context, db *gorm.DB) ([]PackageGroup, error)

	InsertPackage(ctx context.Context, db *gorm.DB, pkg *Package) error
	UpdatePackage(ctx context.Context, db *gorm.DB, pkg *Package) error
	DeletePackage(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindPackageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	ListPackages(ctx context.Context, db *gorm.DB, groupID snowflake.ID) ([]Package, error)

	InsertExtraService(ctx context.Context, db *gorm.DB, svc *ExtraService) error
	UpdateExtraService(ctx context.Context, db *gorm.DB, svc *ExtraService) error
	DeleteExtraService(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindExtraServiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ExtraService, error)
	ListExtraServices(ctx context.Context, db *gorm.DB, groupID snowflake.ID, activeOnly bool) ([]ExtraService, error)
}

type Service interface {
	CreateGroup(ctx context.Context, req GroupRequest) (*PackageGroup, error)
	ListGroups(ctx context.Context) ([]PackageGroup, error)
	GetGroup(ctx context.Context, id string) (*GroupDetail, error)
	UpdateGroup(ctx context.Context, id string, req GroupRequest) (*PackageGroup, error)
	DeleteGroup(ctx context.Context, id string) error

	CreatePackage(ctx context.Context, groupID string, req PackageRequest) (*Package, error)
	ListPackages(ctx context.Context, groupID string) ([]Package, error)
	GetPackage(ctx context.Context, id string) (*Package, error)
	UpdatePackage(ctx context.Context, id string, req PackageRequest) (*Package, error)
	DeletePackage(ctx context.Context, id string) error

	CreateExtraService(ctx context.Context, groupID string, req ExtraServiceRequest) (*ExtraService, error)
	ListExtraServices(ctx context.Context, groupID string, activeOnly bool) ([]ExtraService, error)
	GetExtraService(ctx context.Context, id string) (*ExtraService, error)
	UpdateExtraService(ctx context.Context, id string, req ExtraServiceRequest) (*ExtraService, error)
	DeleteExtraService(ctx context.Context, id string) error

	Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error)
}

type GroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type GroupDetail struct {
	PackageGroup
	Packages      []Package      `json:"packages"`
	ExtraServices []ExtraService `json:"extra_services"`
}

// PackageRequest is used for create and partial update. Nil fields are left
// untouched on update.
type PackageRequest struct {
	Name                 *string          `json:"name"`
	Description          *string          `json:"description"`
	BasePrice            *decimal.Decimal `json:"base_price"`
	ExtraPagesMultiplier *decimal.Decimal `json:"extra_pages_multiplier"`
	IsActive             *bool            `json:"is_active"`
}

type ExtraServiceRequest struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	PricingType     *string          `json:"pricing_type"`
	Price           *decimal.Decimal `json:"price"`
	Percentage      *decimal.Decimal `json:"percentage"`
	InputType       *string          `json:"input_type"`
	MinQuantity     *int             `json:"min_quantity"`
	MaxQuantity     *int             `json:"max_quantity"`
	DefaultQuantity *int             `json:"default_quantity"`
	Options         *[]Option        `json:"options"`
	IsRequired      *bool            `json:"is_required"`
	IsActive        *bool            `json:"is_active"`
	Order           *int             `json:"order"`
}

type QuoteSelection struct {
	ExtraServiceID string `json:"extra_service_id"`
	Quantity       int    `json:"quantity"`
	Option         string `json:"option"`
}

// QuoteRequest previews a quote. BasePrice overrides the package price when set.
type QuoteRequest struct {
	GroupID    string           `json:"group_id"`
	PackageID  string           `json:"package_id"`
	BasePrice  *decimal.Decimal `json:"base_price"`
	Selections []QuoteSelection `json:"selections"`
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrInvalidPercentage     = errors.New("invalid_percentage")
	ErrInvalidMultiplier     = errors.New("invalid_multiplier")
	ErrInvalidPricingType    = errors.New("invalid_pricing_type")
	ErrInvalidInputType      = errors.New("invalid_input_type")
	ErrInvalidQuantityBounds = errors.New("invalid_quantity_bounds")
	ErrInvalidOptions        = errors.New("invalid_options")
	ErrInvalidPackage        = errors.New("invalid_package")
	ErrGroupNameTaken        = errors.New("group_name_taken")
	ErrPackageNameTaken      = errors.New("package_name_taken")
	ErrNotFound              = errors.New("not_found")
)
