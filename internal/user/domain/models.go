package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Username     string       `gorm:"type:text;not null;uniqueIndex:ux_users_username"`
	Email        string       `gorm:"type:text;not null"`
	FullName     string       `gorm:"column:full_name;type:text"`
	IsSuperuser  bool         `gorm:"column:is_superuser;not null;default:false"`
	IsActive     bool         `gorm:"column:is_active;not null;default:true"`
	APITokenHash *string      `gorm:"column:api_token_hash;type:text;uniqueIndex:ux_users_api_token_hash"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

// Tag is a named marker attached to users. Tags are mapped to capabilities by
// the authorization package; nothing else should compare tag names.
type Tag struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_tags_name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Tag) TableName() string { return "tags" }

type UserTag struct {
	UserID snowflake.ID `gorm:"column:user_id;primaryKey"`
	TagID  snowflake.ID `gorm:"column:tag_id;primaryKey"`
}

func (UserTag) TableName() string { return "user_tags" }
