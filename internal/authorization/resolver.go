package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Tag names used by the business. They only appear in the default policy
// seed; handlers work with capabilities.
const (
	TagAccountant     = "muhasebeci"
	TagSeller         = "satici"
	TagProjectManager = "proje_yoneticisi"
	TagDeveloper      = "gelistirici"
)

const grantAction = "grant"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

// Resolver turns a user's tags into a CapabilitySet.
type Resolver struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		db:       p.DB,
		log:      p.Log.Named("authorization.resolver"),
		enforcer: p.Enforcer,
	}
}

// Resolve loads the user's tags and unions the capabilities granted to them.
// Superusers receive every capability. Inactive or unknown users get
// ErrInvalidActor.
func (r *Resolver) Resolve(ctx context.Context, userID snowflake.ID) (CapabilitySet, error) {
	if userID == 0 {
		return 0, ErrInvalidActor
	}

	var row struct {
		IsSuperuser bool `gorm:"column:is_superuser"`
		IsActive    bool `gorm:"column:is_active"`
		Found       bool `gorm:"column:found"`
	}
	if err := r.db.WithContext(ctx).Raw(
		`SELECT is_superuser, is_active, true AS found FROM users WHERE id = ?`,
		userID,
	).Scan(&row).Error; err != nil {
		return 0, err
	}
	if !row.Found || !row.IsActive {
		return 0, ErrInvalidActor
	}
	if row.IsSuperuser {
		return AllCapabilities(), nil
	}

	var tags []string
	if err := r.db.WithContext(ctx).Raw(
		`SELECT t.name FROM tags t JOIN user_tags ut ON ut.tag_id = t.id WHERE ut.user_id = ?`,
		userID,
	).Scan(&tags).Error; err != nil {
		return 0, err
	}

	var set CapabilitySet
	for _, tag := range tags {
		perms, err := r.enforcer.GetImplicitPermissionsForUser(tagSubject(tag))
		if err != nil {
			return 0, err
		}
		for _, perm := range perms {
			if len(perm) < 3 || perm[2] != grantAction {
				continue
			}
			capability, err := ParseCapability(perm[1])
			if err != nil {
				r.log.Warn("ignoring unknown capability in policy",
					zap.String("tag", tag),
					zap.String("capability", perm[1]),
				)
				continue
			}
			set = set.With(capability)
		}
	}
	return set, nil
}

// Grant adds a capability to a tag at runtime.
func (r *Resolver) Grant(tag string, capability Capability) error {
	_, err := r.enforcer.AddPolicy(tagSubject(tag), capability.String(), grantAction)
	return err
}

// Revoke removes a capability from a tag.
func (r *Resolver) Revoke(tag string, capability Capability) error {
	_, err := r.enforcer.RemovePolicy(tagSubject(tag), capability.String(), grantAction)
	return err
}

func tagSubject(tag string) string {
	return "tag:" + strings.ToLower(strings.TrimSpace(tag))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	grants := map[string][]Capability{
		TagAccountant: {
			CapCatalogView, CapCatalogManage,
			CapSalesView, CapSalesManage, CapFinanceManage,
			CapMessaging,
		},
		TagSeller: {
			CapCatalogView,
			CapSalesView, CapSalesManage,
			CapMessaging,
		},
		TagProjectManager: {
			CapCatalogView, CapSalesView,
			CapTasksView, CapTasksManage,
			CapMessaging,
			CapGitHubSync, CapGitHubAdmin,
		},
		TagDeveloper: {
			CapTasksView, CapTasksManage,
			CapMessaging,
			CapGitHubSync,
		},
	}

	for tag, caps := range grants {
		for _, capability := range caps {
			has, err := enforcer.HasPolicy(tagSubject(tag), capability.String(), grantAction)
			if err != nil {
				return err
			}
			if has {
				continue
			}
			if _, err := enforcer.AddPolicy(tagSubject(tag), capability.String(), grantAction); err != nil {
				return err
			}
		}
	}
	return nil
}
