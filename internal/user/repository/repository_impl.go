package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() userdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *userdomain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, username, email, full_name, is_superuser, is_active, api_token_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.IsSuperuser,
		user.IsActive,
		user.APITokenHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, email, full_name, is_superuser, is_active, api_token_hash, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByTokenHash(ctx context.Context, db *gorm.DB, hash string) (*userdomain.User, error) {
	var user userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, email, full_name, is_superuser, is_active, api_token_hash, created_at, updated_at
		 FROM users WHERE api_token_hash = ? AND is_active = ?`,
		hash,
		true,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateTokenHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET api_token_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		hash,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]userdomain.User, error) {
	var users []userdomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, email, full_name, is_superuser, is_active, api_token_hash, created_at, updated_at
		 FROM users ORDER BY username ASC`,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) FindTagByName(ctx context.Context, db *gorm.DB, name string) (*userdomain.Tag, error) {
	var tag userdomain.Tag
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, created_at FROM tags WHERE name = ?`,
		name,
	).Scan(&tag).Error
	if err != nil {
		return nil, err
	}
	if tag.ID == 0 {
		return nil, nil
	}
	return &tag, nil
}

func (r *repo) InsertTag(ctx context.Context, db *gorm.DB, tag *userdomain.Tag) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
		tag.ID,
		tag.Name,
		tag.CreatedAt,
	).Error
}

func (r *repo) AddUserTag(ctx context.Context, db *gorm.DB, userID, tagID snowflake.ID) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&userdomain.UserTag{UserID: userID, TagID: tagID}).Error
}

func (r *repo) RemoveUserTag(ctx context.Context, db *gorm.DB, userID, tagID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM user_tags WHERE user_id = ? AND tag_id = ?`,
		userID,
		tagID,
	).Error
}

func (r *repo) ListTagNames(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Raw(
		`SELECT t.name
		 FROM tags t
		 JOIN user_tags ut ON ut.tag_id = t.id
		 WHERE ut.user_id = ?
		 ORDER BY t.name ASC`,
		userID,
	).Scan(&names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}
