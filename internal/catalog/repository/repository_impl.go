package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	"gorm.io/gorm"
)

const (
	packageColumns = `id, group_id, name, description, base_price, extra_pages_multiplier, is_active, created_at, updated_at`
	serviceColumns = `id, group_id, name, description, pricing_type, price, percentage, input_type,
		min_quantity, max_quantity, default_quantity, options, is_required, is_active, sort_order, created_at, updated_at`
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

func (r *repo) InsertGroup(ctx context.Context, db *gorm.DB, group *catalogdomain.PackageGroup) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO package_groups (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		group.ID,
		group.Name,
		group.Description,
		group.CreatedAt,
		group.UpdatedAt,
	).Error
}

func (r *repo) UpdateGroup(ctx context.Context, db *gorm.DB, group *catalogdomain.PackageGroup) error {
	return db.WithContext(ctx).Exec(
		`UPDATE package_groups SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		group.Name,
		group.Description,
		group.UpdatedAt,
		group.ID,
	).Error
}

// DeleteGroup removes the group together with its packages and extra services.
func (r *repo) DeleteGroup(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	db = db.WithContext(ctx)
	if err := db.Exec(`DELETE FROM extra_services WHERE group_id = ?`, id).Error; err != nil {
		return err
	}
	if err := db.Exec(`DELETE FROM packages WHERE group_id = ?`, id).Error; err != nil {
		return err
	}
	return db.Exec(`DELETE FROM package_groups WHERE id = ?`, id).Error
}

func (r *repo) FindGroupByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.PackageGroup, error) {
	var group catalogdomain.PackageGroup
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, created_at, updated_at FROM package_groups WHERE id = ?`,
		id,
	).Scan(&group).Error
	if err != nil {
		return nil, err
	}
	if group.ID == 0 {
		return nil, nil
	}
	return &group, nil
}

func (r *repo) ListGroups(ctx context.Context, db *gorm.DB) ([]catalogdomain.PackageGroup, error) {
	var groups []catalogdomain.PackageGroup
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, description, created_at, updated_at FROM package_groups ORDER BY name ASC`,
	).Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repo) InsertPackage(ctx context.Context, db *gorm.DB, pkg *catalogdomain.Package) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO packages (`+packageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.ID,
		pkg.GroupID,
		pkg.Name,
		pkg.Description,
		pkg.BasePrice,
		pkg.ExtraPagesMultiplier,
		pkg.IsActive,
		pkg.CreatedAt,
		pkg.UpdatedAt,
	).Error
}

func (r *repo) UpdatePackage(ctx context.Context, db *gorm.DB, pkg *catalogdomain.Package) error {
	return db.WithContext(ctx).Exec(
		`UPDATE packages
		 SET name = ?, description = ?, base_price = ?, extra_pages_multiplier = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		pkg.Name,
		pkg.Description,
		pkg.BasePrice,
		pkg.ExtraPagesMultiplier,
		pkg.IsActive,
		pkg.UpdatedAt,
		pkg.ID,
	).Error
}

func (r *repo) DeletePackage(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM packages WHERE id = ?`, id).Error
}

func (r *repo) FindPackageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Package, error) {
	var pkg catalogdomain.Package
	err := db.WithContext(ctx).Raw(
		`SELECT `+packageColumns+` FROM packages WHERE id = ?`,
		id,
	).Scan(&pkg).Error
	if err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, nil
	}
	return &pkg, nil
}

func (r *repo) ListPackages(ctx context.Context, db *gorm.DB, groupID snowflake.ID) ([]catalogdomain.Package, error) {
	var pkgs []catalogdomain.Package
	err := db.WithContext(ctx).Raw(
		`SELECT `+packageColumns+` FROM packages WHERE group_id = ? ORDER BY base_price ASC, name ASC`,
		groupID,
	).Scan(&pkgs).Error
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

func (r *repo) InsertExtraService(ctx context.Context, db *gorm.DB, svc *catalogdomain.ExtraService) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO extra_services (`+serviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID,
		svc.GroupID,
		svc.Name,
		svc.Description,
		svc.PricingType,
		svc.Price,
		svc.Percentage,
		svc.InputType,
		svc.MinQuantity,
		svc.MaxQuantity,
		svc.DefaultQuantity,
		svc.Options,
		svc.IsRequired,
		svc.IsActive,
		svc.SortOrder,
		svc.CreatedAt,
		svc.UpdatedAt,
	).Error
}

func (r *repo) UpdateExtraService(ctx context.Context, db *gorm.DB, svc *catalogdomain.ExtraService) error {
	return db.WithContext(ctx).Exec(
		`UPDATE extra_services
		 SET name = ?, description = ?, pricing_type = ?, price = ?, percentage = ?, input_type = ?,
		     min_quantity = ?, max_quantity = ?, default_quantity = ?, options = ?,
		     is_required = ?, is_active = ?, sort_order = ?, updated_at = ?
		 WHERE id = ?`,
		svc.Name,
		svc.Description,
		svc.PricingType,
		svc.Price,
		svc.Percentage,
		svc.InputType,
		svc.MinQuantity,
		svc.MaxQuantity,
		svc.DefaultQuantity,
		svc.Options,
		svc.IsRequired,
		svc.IsActive,
		svc.SortOrder,
		svc.UpdatedAt,
		svc.ID,
	).Error
}

func (r *repo) DeleteExtraService(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM extra_services WHERE id = ?`, id).Error
}

func (r *repo) FindExtraServiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.ExtraService, error) {
	var svc catalogdomain.ExtraService
	err := db.WithContext(ctx).Raw(
		`SELECT `+serviceColumns+` FROM extra_services WHERE id = ?`,
		id,
	).Scan(&svc).Error
	if err != nil {
		return nil, err
	}
	if svc.ID == 0 {
		return nil, nil
	}
	return &svc, nil
}

func (r *repo) ListExtraServices(ctx context.Context, db *gorm.DB, groupID snowflake.ID, activeOnly bool) ([]catalogdomain.ExtraService, error) {
	query := `SELECT ` + serviceColumns + ` FROM extra_services WHERE group_id = ?`
	args := []any{groupID}
	if activeOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY sort_order ASC, name ASC`

	var svcs []catalogdomain.ExtraService
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&svcs).Error; err != nil {
		return nil, err
	}
	return svcs, nil
}
