package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema. It is safe to call on
// every start.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Close would also close the shared *sql.DB.

	return nil
}

// Models lists every table owned by the application, parents first.
func Models() []any {
	return []any{
		&userdomain.User{},
		&userdomain.Tag{},
		&userdomain.UserTag{},
		&catalogdomain.PackageGroup{},
		&catalogdomain.Package{},
		&catalogdomain.ExtraService{},
		&saledomain.ProjectSale{},
		&saledomain.SaleExtraService{},
		&saledomain.AdditionalCost{},
		&saledomain.SalePayment{},
		&saledomain.SaleFile{},
		&taskdomain.Project{},
		&taskdomain.Task{},
		&commdomain.Thread{},
		&commdomain.Message{},
		&commdomain.DirectMessage{},
		&commdomain.Notification{},
		&githubdomain.Credential{},
		&githubdomain.Repository{},
		&githubdomain.Issue{},
		&githubdomain.IssueComment{},
	}
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite and
// mysql, which the embedded SQL does not target.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
