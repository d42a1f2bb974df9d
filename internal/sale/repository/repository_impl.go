package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	saleColumns = `id, customer_name, project_name, base_package_id, base_price, extra_services_total,
		additional_costs_total, final_price, status, quote_date, start_date, delivery_date, notes,
		created_by, created_at, updated_at`
	itemColumns = `id, sale_id, extra_service_id, custom_service_name, service_name, selected_option,
		quantity, unit_price, total_price, price_overridden, is_approved, notes, created_at, updated_at`
	costColumns    = `id, sale_id, cost_type, name, cost, is_customer_paid, is_approved, notes, created_at, updated_at`
	paymentColumns = `id, sale_id, amount, paid_at, method, reference, created_at`
	fileColumns    = `id, sale_id, kind, original_name, object_key, content_type, size, created_at`
)

type repo struct{}

func Provide() saledomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sale *saledomain.ProjectSale) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO project_sales (`+saleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.CustomerName,
		sale.ProjectName,
		sale.BasePackageID,
		sale.BasePrice,
		sale.ExtraServicesTotal,
		sale.AdditionalCostsTotal,
		sale.FinalPrice,
		sale.Status,
		sale.QuoteDate,
		sale.StartDate,
		sale.DeliveryDate,
		sale.Notes,
		sale.CreatedBy,
		sale.CreatedAt,
		sale.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sale *saledomain.ProjectSale) error {
	return db.WithContext(ctx).Exec(
		`UPDATE project_sales
		 SET customer_name = ?, project_name = ?, base_package_id = ?, base_price = ?,
		     status = ?, quote_date = ?, start_date = ?, delivery_date = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		sale.CustomerName,
		sale.ProjectName,
		sale.BasePackageID,
		sale.BasePrice,
		sale.Status,
		sale.QuoteDate,
		sale.StartDate,
		sale.DeliveryDate,
		sale.Notes,
		sale.UpdatedAt,
		sale.ID,
	).Error
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, sale *saledomain.ProjectSale) error {
	return db.WithContext(ctx).Exec(
		`UPDATE project_sales
		 SET base_price = ?, extra_services_total = ?, additional_costs_total = ?, final_price = ?, updated_at = ?
		 WHERE id = ?`,
		sale.BasePrice,
		sale.ExtraServicesTotal,
		sale.AdditionalCostsTotal,
		sale.FinalPrice,
		sale.UpdatedAt,
		sale.ID,
	).Error
}

// Delete removes the sale and all of its children. Stored objects are the
// caller's responsibility.
func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	db = db.WithContext(ctx)
	for _, table := range []string{"sale_files", "sale_payments", "additional_costs", "sale_extra_services"} {
		if err := db.Exec(`DELETE FROM `+table+` WHERE sale_id = ?`, id).Error; err != nil {
			return err
		}
	}
	return db.Exec(`DELETE FROM project_sales WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*saledomain.ProjectSale, error) {
	var sale saledomain.ProjectSale
	err := db.WithContext(ctx).Raw(
		`SELECT `+saleColumns+` FROM project_sales WHERE id = ?`,
		id,
	).Scan(&sale).Error
	if err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

// FindByIDForUpdate takes a row lock on the sale. Dialects without row
// locks drop the clause and rely on the transaction.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*saledomain.ProjectSale, error) {
	var sale saledomain.ProjectSale
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter saledomain.ListFilter) ([]saledomain.ProjectSale, error) {
	query := `SELECT ` + saleColumns + ` FROM project_sales WHERE 1 = 1`
	args := []any{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Customer != "" {
		query += ` AND LOWER(customer_name) LIKE ?`
		args = append(args, "%"+filter.Customer+"%")
	}
	query += ` ORDER BY quote_date DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	var sales []saledomain.ProjectSale
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *saledomain.SaleExtraService) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sale_extra_services (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.SaleID,
		item.ExtraServiceID,
		item.CustomServiceName,
		item.ServiceName,
		item.SelectedOption,
		item.Quantity,
		item.UnitPrice,
		item.TotalPrice,
		item.PriceOverridden,
		item.IsApproved,
		item.Notes,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) UpdateItem(ctx context.Context, db *gorm.DB, item *saledomain.SaleExtraService) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sale_extra_services
		 SET quantity = ?, unit_price = ?, total_price = ?, price_overridden = ?, is_approved = ?, notes = ?, updated_at = ?
		 WHERE sale_id = ? AND id = ?`,
		item.Quantity,
		item.UnitPrice,
		item.TotalPrice,
		item.PriceOverridden,
		item.IsApproved,
		item.Notes,
		item.UpdatedAt,
		item.SaleID,
		item.ID,
	).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM sale_extra_services WHERE sale_id = ? AND id = ?`, saleID, id).Error
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*saledomain.SaleExtraService, error) {
	var item saledomain.SaleExtraService
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM sale_extra_services WHERE sale_id = ? AND id = ?`,
		saleID,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]saledomain.SaleExtraService, error) {
	var items []saledomain.SaleExtraService
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM sale_extra_services WHERE sale_id = ? ORDER BY created_at ASC, id ASC`,
		saleID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertCost(ctx context.Context, db *gorm.DB, cost *saledomain.AdditionalCost) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO additional_costs (`+costColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cost.ID,
		cost.SaleID,
		cost.CostType,
		cost.Name,
		cost.Cost,
		cost.IsCustomerPaid,
		cost.IsApproved,
		cost.Notes,
		cost.CreatedAt,
		cost.UpdatedAt,
	).Error
}

func (r *repo) UpdateCost(ctx context.Context, db *gorm.DB, cost *saledomain.AdditionalCost) error {
	return db.WithContext(ctx).Exec(
		`UPDATE additional_costs
		 SET cost_type = ?, name = ?, cost = ?, is_customer_paid = ?, is_approved = ?, notes = ?, updated_at = ?
		 WHERE sale_id = ? AND id = ?`,
		cost.CostType,
		cost.Name,
		cost.Cost,
		cost.IsCustomerPaid,
		cost.IsApproved,
		cost.Notes,
		cost.UpdatedAt,
		cost.SaleID,
		cost.ID,
	).Error
}

func (r *repo) DeleteCost(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM additional_costs WHERE sale_id = ? AND id = ?`, saleID, id).Error
}

func (r *repo) FindCost(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*saledomain.AdditionalCost, error) {
	var cost saledomain.AdditionalCost
	err := db.WithContext(ctx).Raw(
		`SELECT `+costColumns+` FROM additional_costs WHERE sale_id = ? AND id = ?`,
		saleID,
		id,
	).Scan(&cost).Error
	if err != nil {
		return nil, err
	}
	if cost.ID == 0 {
		return nil, nil
	}
	return &cost, nil
}

func (r *repo) ListCosts(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]saledomain.AdditionalCost, error) {
	var costs []saledomain.AdditionalCost
	err := db.WithContext(ctx).Raw(
		`SELECT `+costColumns+` FROM additional_costs WHERE sale_id = ? ORDER BY created_at ASC, id ASC`,
		saleID,
	).Scan(&costs).Error
	if err != nil {
		return nil, err
	}
	return costs, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *saledomain.SalePayment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sale_payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.SaleID,
		payment.Amount,
		payment.PaidAt,
		payment.Method,
		payment.Reference,
		payment.CreatedAt,
	).Error
}

func (r *repo) DeletePayment(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM sale_payments WHERE sale_id = ? AND id = ?`, saleID, id).Error
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*saledomain.SalePayment, error) {
	var payment saledomain.SalePayment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM sale_payments WHERE sale_id = ? AND id = ?`,
		saleID,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]saledomain.SalePayment, error) {
	var payments []saledomain.SalePayment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM sale_payments WHERE sale_id = ? ORDER BY paid_at ASC, id ASC`,
		saleID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) InsertFile(ctx context.Context, db *gorm.DB, file *saledomain.SaleFile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sale_files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.SaleID,
		file.Kind,
		file.OriginalName,
		file.ObjectKey,
		file.ContentType,
		file.Size,
		file.CreatedAt,
	).Error
}

func (r *repo) DeleteFile(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM sale_files WHERE sale_id = ? AND id = ?`, saleID, id).Error
}

func (r *repo) FindFile(ctx context.Context, db *gorm.DB, saleID, id snowflake.ID) (*saledomain.SaleFile, error) {
	var file saledomain.SaleFile
	err := db.WithContext(ctx).Raw(
		`SELECT `+fileColumns+` FROM sale_files WHERE sale_id = ? AND id = ?`,
		saleID,
		id,
	).Scan(&file).Error
	if err != nil {
		return nil, err
	}
	if file.ID == 0 {
		return nil, nil
	}
	return &file, nil
}

func (r *repo) ListFiles(ctx context.Context, db *gorm.DB, saleID snowflake.ID) ([]saledomain.SaleFile, error) {
	var files []saledomain.SaleFile
	err := db.WithContext(ctx).Raw(
		`SELECT `+fileColumns+` FROM sale_files WHERE sale_id = ? ORDER BY created_at ASC, id ASC`,
		saleID,
	).Scan(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
