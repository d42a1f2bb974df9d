package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type InputType string

const (
	InputCheckbox InputType = "checkbox"
	InputRadio    InputType = "radio"
	InputNumber   InputType = "number"
	InputSelect   InputType = "select"
)

// PackageGroup is a catalog category such as "WordPress" or "SaaS".
type PackageGroup struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null;uniqueIndex:ux_package_groups_name" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PackageGroup) TableName() string { return "package_groups" }

type Package struct {
	ID                   snowflake.ID        `gorm:"primaryKey" json:"id"`
	GroupID              snowflake.ID        `gorm:"column:group_id;not null;uniqueIndex:ux_packages_group_name,priority:1" json:"group_id"`
	Name                 string              `gorm:"type:text;not null;uniqueIndex:ux_packages_group_name,priority:2" json:"name"`
	Description          string              `gorm:"type:text" json:"description"`
	BasePrice            decimal.Decimal     `gorm:"column:base_price;type:decimal(14,2);not null" json:"base_price"`
	ExtraPagesMultiplier decimal.NullDecimal `gorm:"column:extra_pages_multiplier;type:decimal(7,2)" json:"extra_pages_multiplier"`
	IsActive             bool                `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt            time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Package) TableName() string { return "packages" }

// Option is one choice of a select-type extra service.
type Option struct {
	Value string          `json:"value"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

type ExtraService struct {
	ID              snowflake.ID                `gorm:"primaryKey" json:"id"`
	GroupID         snowflake.ID                `gorm:"column:group_id;not null;index" json:"group_id"`
	Name            string                      `gorm:"type:text;not null" json:"name"`
	Description     string                      `gorm:"type:text" json:"description"`
	PricingType     pricing.PricingType         `gorm:"column:pricing_type;type:text;not null" json:"pricing_type"`
	Price           decimal.Decimal             `gorm:"column:price;type:decimal(14,2);not null" json:"price"`
	Percentage      decimal.Decimal             `gorm:"column:percentage;type:decimal(7,2);not null" json:"percentage"`
	InputType       InputType                   `gorm:"column:input_type;type:text;not null" json:"input_type"`
	MinQuantity     int                         `gorm:"column:min_quantity;not null;default:1" json:"min_quantity"`
	MaxQuantity     int                         `gorm:"column:max_quantity;not null;default:1" json:"max_quantity"`
	DefaultQuantity int                         `gorm:"column:default_quantity;not null;default:1" json:"default_quantity"`
	Options         datatypes.JSONSlice[Option] `gorm:"column:options" json:"options"`
	IsRequired      bool                        `gorm:"column:is_required;not null;default:false" json:"is_required"`
	IsActive        bool                        `gorm:"column:is_active;not null;default:true" json:"is_active"`
	SortOrder       int                         `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt       time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ExtraService) TableName() string { return "extra_services" }

// Rule converts the row into the shape the pricing engine works with.
func (e ExtraService) Rule() pricing.ServiceRule {
	rule := pricing.ServiceRule{
		ID:              e.ID.String(),
		Name:            e.Name,
		PricingType:     e.PricingType,
		Price:           e.Price,
		Percentage:      e.Percentage,
		MinQuantity:     e.MinQuantity,
		MaxQuantity:     e.MaxQuantity,
		DefaultQuantity: e.DefaultQuantity,
		IsRequired:      e.IsRequired,
		IsActive:        e.IsActive,
	}
	if e.InputType == InputSelect {
		rule.Options = make(map[string]decimal.Decimal, len(e.Options))
		for _, opt := range e.Options {
			rule.Options[opt.Value] = opt.Price
		}
	}
	return rule
}
