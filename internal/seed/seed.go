package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glitchidea/glichflow/internal/authorization"
	"github.com/glitchidea/glichflow/internal/config"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultAdminEmail = "admin@glichflow.local"

var defaultTags = []string{
	authorization.TagAccountant,
	authorization.TagSeller,
	authorization.TagProjectManager,
	authorization.TagDeveloper,
}

// EnsureDefaultTags creates the tags the capability policy knows about.
func EnsureDefaultTags(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	for _, name := range defaultTags {
		tag := userdomain.Tag{ID: node.Generate(), Name: name, CreatedAt: now}
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(&tag).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// EnsureAdmin creates the bootstrap superuser once. An existing user with
// the same username is left untouched, token included.
func EnsureAdmin(db *gorm.DB, node *snowflake.Node, cfg config.BootstrapConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if !cfg.Enabled() {
		return nil
	}
	if !strings.HasPrefix(cfg.AdminToken, "gf_") {
		return errors.New("bootstrap admin token must start with gf_")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userdomain.User{}).Where("username = ?", cfg.AdminUsername).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		email := cfg.AdminEmail
		if email == "" {
			email = defaultAdminEmail
		}
		hash := userdomain.HashToken(cfg.AdminToken)
		now := time.Now().UTC()
		return tx.Create(&userdomain.User{
			ID:           node.Generate(),
			Username:     cfg.AdminUsername,
			Email:        email,
			FullName:     "Administrator",
			IsSuperuser:  true,
			IsActive:     true,
			APITokenHash: &hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}).Error
	})
}
