package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	StatusDraft      SaleStatus = "draft"
	StatusQuoted     SaleStatus = "quoted"
	StatusInProgress SaleStatus = "in_progress"
	StatusCompleted  SaleStatus = "completed"
	StatusCancelled  SaleStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s SaleStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo walks draft -> quoted -> in_progress -> completed. Any
// non-terminal status may be cancelled.
func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusDraft:
		return next == StatusQuoted
	case StatusQuoted:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusCompleted
	}
	return false
}

type CostType string

const (
	CostDomain     CostType = "domain"
	CostHosting    CostType = "hosting"
	CostSSL        CostType = "ssl"
	CostLicense    CostType = "license"
	CostPlugin     CostType = "plugin"
	CostTheme      CostType = "theme"
	CostThirdParty CostType = "third_party"
	CostOther      CostType = "other"
)

var CostTypes = []CostType{CostDomain, CostHosting, CostSSL, CostLicense, CostPlugin, CostTheme, CostThirdParty, CostOther}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodOther        PaymentMethod = "other"
)

type FileKind string

const (
	FileAttachment FileKind = "attachment"
	FileReceipt    FileKind = "receipt"
)

type ProjectSale struct {
	ID                   snowflake.ID    `gorm:"primaryKey"`
	CustomerName         string          `gorm:"type:text;not null"`
	ProjectName          string          `gorm:"type:text;not null"`
	BasePackageID        *snowflake.ID   `gorm:"column:base_package_id"`
	BasePrice            decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ExtraServicesTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	AdditionalCostsTotal decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	FinalPrice           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status               SaleStatus      `gorm:"type:text;not null;index"`
	QuoteDate            time.Time       `gorm:"not null"`
	StartDate            *time.Time
	DeliveryDate         *time.Time
	Notes                string        `gorm:"type:text"`
	CreatedBy            *snowflake.ID `gorm:"column:created_by"`
	CreatedAt            time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProjectSale) TableName() string { return "project_sales" }

// SaleExtraService is either a catalog line (ExtraServiceID set) or a custom
// line (CustomServiceName set), never both.
type SaleExtraService struct {
	ID                snowflake.ID    `gorm:"primaryKey"`
	SaleID            snowflake.ID    `gorm:"column:sale_id;not null;index"`
	ExtraServiceID    *snowflake.ID   `gorm:"column:extra_service_id"`
	CustomServiceName *string         `gorm:"column:custom_service_name;type:text"`
	ServiceName       string          `gorm:"column:service_name;type:text;not null"`
	SelectedOption    string          `gorm:"column:selected_option;type:text"`
	Quantity          int             `gorm:"not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	// PriceOverridden pins UnitPrice against base-price repricing.
	PriceOverridden bool      `gorm:"column:price_overridden;not null;default:false"`
	IsApproved      bool      `gorm:"not null;default:false"`
	Notes           string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SaleExtraService) TableName() string { return "sale_extra_services" }

type AdditionalCost struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	SaleID         snowflake.ID    `gorm:"column:sale_id;not null;index"`
	CostType       CostType        `gorm:"type:text;not null"`
	Name           string          `gorm:"type:text;not null"`
	Cost           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	IsCustomerPaid bool            `gorm:"not null;default:false"`
	IsApproved     bool            `gorm:"not null;default:false"`
	Notes          string          `gorm:"type:text"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AdditionalCost) TableName() string { return "additional_costs" }

type SalePayment struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	SaleID    snowflake.ID    `gorm:"column:sale_id;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PaidAt    time.Time       `gorm:"not null"`
	Method    PaymentMethod   `gorm:"type:text;not null"`
	Reference string          `gorm:"type:text"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SalePayment) TableName() string { return "sale_payments" }

type SaleFile struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	SaleID       snowflake.ID `gorm:"column:sale_id;not null;index"`
	Kind         FileKind     `gorm:"type:text;not null"`
	OriginalName string       `gorm:"type:text;not null"`
	ObjectKey    string       `gorm:"type:text;not null;uniqueIndex"`
	ContentType  string       `gorm:"type:text"`
	Size         int64        `gorm:"not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SaleFile) TableName() string { return "sale_files" }
