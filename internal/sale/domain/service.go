package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status   SaleStatus
	Customer string
	Limit    int
	Offset   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sale *ProjectSale) error
	Update(ctx context.Context, db *gorm.DB, sale *ProjectSale) error
	UpdateTotals(ctx context.Context, db *gorm.DB, sale *ProjectSale) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProjectSale, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProjectSale, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]ProjectSale, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *SaleExtraService) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *SaleExtraService) error
	DeleteItem(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error
	FindItem(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*SaleExtraService, error)
	ListItems(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]SaleExtraService, error)

	InsertCost(ctx context.Context, db *gorm.DB, cost *AdditionalCost) error
	UpdateCost(ctx context.Context, db *gorm.DB, cost *AdditionalCost) error
	DeleteCost(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error
	FindCost(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*AdditionalCost, error)
	ListCosts(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]AdditionalCost, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *SalePayment) error
	DeletePayment(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error
	FindPayment(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*SalePayment, error)
	ListPayments(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]SalePayment, error)

	InsertFile(ctx context.Context, db *gorm.DB, file *SaleFile) error
	DeleteFile(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error
	FindFile(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*SaleFile, error)
	ListFiles(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]SaleFile, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Summary, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Response, error)
	TransitionStatus(ctx context.Context, id string, status string) (*Response, error)
	Delete(ctx context.Context, id string) error

	AddExtraService(ctx context.Context, saleID string, req ItemRequest) (*Response, error)
	UpdateExtraService(ctx context.Context, saleID, itemID string, req ItemUpdateRequest) (*Response, error)
	RemoveExtraService(ctx context.Context, saleID, itemID string) (*Response, error)

	AddCost(ctx context.Context, saleID string, req CostRequest) (*Response, error)
	UpdateCost(ctx context.Context, saleID, costID string, req CostRequest) (*Response, error)
	RemoveCost(ctx context.Context, saleID, costID string) (*Response, error)

	RecordPayment(ctx context.Context, saleID string, req PaymentRequest) (*Response, error)
	RemovePayment(ctx context.Context, saleID, paymentID string) (*Response, error)

	UploadFile(ctx context.Context, saleID string, req UploadRequest) (*FileResponse, error)
	RemoveFile(ctx context.Context, saleID, fileID string) error

	QuotePDF(ctx context.Context, id string) (*Document, error)
	PaymentReceiptPDF(ctx context.Context, saleID, paymentID string) (*Document, error)
}

type CreateRequest struct {
	CustomerName  string           `json:"customer_name"`
	ProjectName   string           `json:"project_name"`
	BasePackageID string           `json:"base_package_id"`
	BasePrice     *decimal.Decimal `json:"base_price"`
	QuoteDate     *time.Time       `json:"quote_date"`
	StartDate     *time.Time       `json:"start_date"`
	DeliveryDate  *time.Time       `json:"delivery_date"`
	Notes         string           `json:"notes"`
	CreatedBy     string           `json:"-"`
}

type UpdateRequest struct {
	CustomerName  *string          `json:"customer_name"`
	ProjectName   *string          `json:"project_name"`
	BasePackageID *string          `json:"base_package_id"`
	BasePrice     *decimal.Decimal `json:"base_price"`
	QuoteDate     *time.Time       `json:"quote_date"`
	StartDate     *time.Time       `json:"start_date"`
	DeliveryDate  *time.Time       `json:"delivery_date"`
	Notes         *string          `json:"notes"`
}

type ListRequest struct {
	Status   string
	Customer string
	Limit    int
	Offset   int
}

// ItemRequest adds a line. Set ExtraServiceID for a catalog line or
// CustomServiceName for a custom one.
type ItemRequest struct {
	ExtraServiceID    string           `json:"extra_service_id"`
	CustomServiceName string           `json:"custom_service_name"`
	Option            string           `json:"option"`
	Quantity          int              `json:"quantity"`
	UnitPrice         *decimal.Decimal `json:"unit_price"`
	IsApproved        bool             `json:"is_approved"`
	Notes             string           `json:"notes"`
}

type ItemUpdateRequest struct {
	Quantity   *int             `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	IsApproved *bool            `json:"is_approved"`
	Notes      *string          `json:"notes"`
}

type CostRequest struct {
	CostType       *string          `json:"cost_type"`
	Name           *string          `json:"name"`
	Cost           *decimal.Decimal `json:"cost"`
	IsCustomerPaid *bool            `json:"is_customer_paid"`
	IsApproved     *bool            `json:"is_approved"`
	Notes          *string          `json:"notes"`
}

type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paid_at"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

type UploadRequest struct {
	Kind        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Document struct {
	Filename string
	Content  []byte
}

type Summary struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customer_name"`
	ProjectName  string          `json:"project_name"`
	Status       string          `json:"status"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	QuoteDate    time.Time       `json:"quote_date"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
}

type ItemResponse struct {
	ID                string          `json:"id"`
	ExtraServiceID    *string         `json:"extra_service_id"`
	CustomServiceName *string         `json:"custom_service_name"`
	ServiceName       string          `json:"service_name"`
	Option            string          `json:"option,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	IsApproved        bool            `json:"is_approved"`
	Notes             string          `json:"notes"`
}

type CostResponse struct {
	ID             string          `json:"id"`
	CostType       string          `json:"cost_type"`
	Name           string          `json:"name"`
	Cost           decimal.Decimal `json:"cost"`
	IsCustomerPaid bool            `json:"is_customer_paid"`
	IsApproved     bool            `json:"is_approved"`
	Notes          string          `json:"notes"`
}

type PaymentResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

type FileResponse struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	OriginalName string    `json:"original_name"`
	ObjectKey    string    `json:"object_key"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

type Response struct {
	ID                   string            `json:"id"`
	CustomerName         string            `json:"customer_name"`
	ProjectName          string            `json:"project_name"`
	BasePackageID        *string           `json:"base_package_id"`
	BasePrice            decimal.Decimal   `json:"base_price"`
	ExtraServicesTotal   decimal.Decimal   `json:"extra_services_total"`
	AdditionalCostsTotal decimal.Decimal   `json:"additional_costs_total"`
	FinalPrice           decimal.Decimal   `json:"final_price"`
	PaidTotal            decimal.Decimal   `json:"paid_total"`
	BalanceDue           decimal.Decimal   `json:"balance_due"`
	Status               string            `json:"status"`
	QuoteDate            time.Time         `json:"quote_date"`
	StartDate            *time.Time        `json:"start_date"`
	DeliveryDate         *time.Time        `json:"delivery_date"`
	Notes                string            `json:"notes"`
	ExtraServices        []ItemResponse    `json:"extra_services"`
	AdditionalCosts      []CostResponse    `json:"additional_costs"`
	Payments             []PaymentResponse `json:"payments"`
	Files                []FileResponse    `json:"files"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidCustomer      = errors.New("invalid_customer_name")
	ErrInvalidProject       = errors.New("invalid_project_name")
	ErrInvalidPackage       = errors.New("invalid_package")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidDates         = errors.New("invalid_dates")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidTransition    = errors.New("invalid_status_transition")
	ErrSaleClosed           = errors.New("sale_closed")
	ErrInvalidLine          = errors.New("invalid_line")
	ErrInvalidExtraService  = errors.New("invalid_extra_service")
	ErrInactiveExtraService = errors.New("inactive_extra_service")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidOption        = errors.New("invalid_option")
	ErrInvalidCostType      = errors.New("invalid_cost_type")
	ErrInvalidCostName      = errors.New("invalid_cost_name")
	ErrInvalidPaymentAmount = errors.New("invalid_payment_amount")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidFileKind      = errors.New("invalid_file_kind")
	ErrInvalidFile          = errors.New("invalid_file")
	ErrFileTooLarge         = errors.New("file_too_large")
	ErrTotalsInconsistent   = errors.New("totals_inconsistent")
	ErrNotFound             = errors.New("not_found")
)
