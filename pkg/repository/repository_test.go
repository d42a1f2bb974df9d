package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/glitchidea/glichflow/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type reminder struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64
	Seen   bool
	Note   string
}

func newStore(t *testing.T) Repository[reminder] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&reminder{}))
	return ProvideStore[reminder](db)
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, user := range []int64{7, 7, 8} {
		require.NoError(t, s.Create(ctx, &reminder{ID: int64(i + 1), UserID: user, Note: "due"}))
	}

	rows, err := s.Find(ctx, &reminder{UserID: 7}, option.WithOrder("id DESC"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)

	missing, err := s.FindOne(ctx, &reminder{ID: 99})
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Update(ctx, "1", map[string]any{"seen": true}))
	assert.ErrorIs(t, s.Update(ctx, "1", nil), errNoChanges)

	unread, err := s.Count(ctx, &reminder{UserID: 7}, option.WithWhere("seen = ?", false))
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, s.Delete(ctx, "3"))
	total, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
