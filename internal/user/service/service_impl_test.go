package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"github.com/glitchidea/glichflow/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) userdomain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &userdomain.Tag{}, &userdomain.UserTag{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func TestCreateUserWithTags(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, userdomain.CreateRequest{
		Username: " Ayse ",
		Email:    "ayse@example.com",
		Tags:     []string{"Muhasebeci", "satici", "muhasebeci"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ayse", resp.Username)
	assert.Equal(t, []string{"muhasebeci", "satici"}, resp.Tags)

	_, err = svc.Create(ctx, userdomain.CreateRequest{Username: "ayse", Email: "other@example.com"})
	assert.ErrorIs(t, err, userdomain.ErrUsernameTaken)

	_, err = svc.Create(ctx, userdomain.CreateRequest{Username: "x", Email: "nope"})
	assert.ErrorIs(t, err, userdomain.ErrInvalidEmail)
}

func TestIssueTokenAndAuthenticate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, userdomain.CreateRequest{Username: "mehmet", Email: "m@example.com"})
	require.NoError(t, err)

	token, err := svc.IssueToken(ctx, resp.ID)
	require.NoError(t, err)
	assert.Contains(t, token.Token, tokenPrefix)

	user, err := svc.Authenticate(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, user.ID.String())

	_, err = svc.Authenticate(ctx, "gf_wrong")
	assert.ErrorIs(t, err, userdomain.ErrInvalidToken)

	rotated, err := svc.IssueToken(ctx, resp.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token.Token)
	assert.ErrorIs(t, err, userdomain.ErrInvalidToken)
	_, err = svc.Authenticate(ctx, rotated.Token)
	assert.NoError(t, err)
}

func TestRemoveTag(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	resp, err := svc.Create(ctx, userdomain.CreateRequest{Username: "zeynep", Email: "z@example.com", Tags: []string{"satici"}})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveTag(ctx, resp.ID, "SATICI"))
	require.NoError(t, svc.RemoveTag(ctx, resp.ID, "unknown"))

	got, err := svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)

	_, err = svc.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, userdomain.ErrInvalidUserID)
}
