package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByTokenHash(ctx context.Context, db *gorm.DB, hash string) (*User, error)
	UpdateTokenHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string) error
	List(ctx context.Context, db *gorm.DB) ([]User, error)
	FindTagByName(ctx context.Context, db *gorm.DB, name string) (*Tag, error)
	InsertTag(ctx context.Context, db *gorm.DB, tag *Tag) error
	AddUserTag(ctx context.Context, db *gorm.DB, userID, tagID snowflake.ID) error
	RemoveUserTag(ctx context.Context, db *gorm.DB, userID, tagID snowflake.ID) error
	ListTagNames(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]string, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	IssueToken(ctx context.Context, id string) (*TokenResponse, error)
	Authenticate(ctx context.Context, rawToken string) (*User, error)
	AssignTag(ctx context.Context, id string, tag string) error
	RemoveTag(ctx context.Context, id string, tag string) error
}

type CreateRequest struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	IsSuperuser bool     `json:"is_superuser"`
	Tags        []string `json:"tags"`
}

type Response struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	IsSuperuser bool     `json:"is_superuser"`
	IsActive    bool     `json:"is_active"`
	Tags        []string `json:"tags"`
}

type TokenResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

var (
	ErrInvalidUsername = errors.New("invalid_username")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidTag      = errors.New("invalid_tag")
	ErrInvalidUserID   = errors.New("invalid_user_id")
	ErrInvalidToken    = errors.New("invalid_token")
	ErrUsernameTaken   = errors.New("username_taken")
	ErrNotFound        = errors.New("not_found")
)
