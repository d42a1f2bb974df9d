package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/glitchidea/glichflow/internal/config"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &userdomain.Tag{}, &userdomain.UserTag{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return db, node
}

func TestEnsureDefaultTagsIsIdempotent(t *testing.T) {
	db, node := setup(t)

	require.NoError(t, EnsureDefaultTags(db, node))
	require.NoError(t, EnsureDefaultTags(db, node))

	var names []string
	require.NoError(t, db.Model(&userdomain.Tag{}).Order("name").Pluck("name", &names).Error)
	assert.ElementsMatch(t, defaultTags, names)
}

func TestEnsureAdmin(t *testing.T) {
	db, node := setup(t)
	cfg := config.BootstrapConfig{AdminUsername: "root", AdminToken: "gf_bootstrap"}

	require.NoError(t, EnsureAdmin(db, node, cfg))

	var user userdomain.User
	require.NoError(t, db.Where("username = ?", "root").First(&user).Error)
	assert.True(t, user.IsSuperuser)
	assert.Equal(t, defaultAdminEmail, user.Email)
	require.NotNil(t, user.APITokenHash)
	assert.Equal(t, userdomain.HashToken("gf_bootstrap"), *user.APITokenHash)

	// A changed token does not overwrite the existing admin.
	cfg.AdminToken = "gf_other"
	require.NoError(t, EnsureAdmin(db, node, cfg))
	var again userdomain.User
	require.NoError(t, db.Where("username = ?", "root").First(&again).Error)
	assert.Equal(t, *user.APITokenHash, *again.APITokenHash)
}

func TestEnsureAdminSkipsAndValidates(t *testing.T) {
	db, node := setup(t)

	require.NoError(t, EnsureAdmin(db, node, config.BootstrapConfig{}))
	var count int64
	require.NoError(t, db.Model(&userdomain.User{}).Count(&count).Error)
	assert.Zero(t, count)

	err := EnsureAdmin(db, node, config.BootstrapConfig{AdminUsername: "root", AdminToken: "plain"})
	assert.Error(t, err)
}
