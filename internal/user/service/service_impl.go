package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"github.com/glitchidea/glichflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	tokenPrefix      = "gf_"
	tokenSecretBytes = 32
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  userdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  userdomain.Repository
	genID *snowflake.Node
}

func New(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateRequest) (*userdomain.Response, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return nil, userdomain.ErrInvalidUsername
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, userdomain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	user := &userdomain.User{
		ID:          s.genID.Generate(),
		Username:    username,
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		IsSuperuser: req.IsSuperuser,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return userdomain.ErrUsernameTaken
			}
			return err
		}
		for _, name := range req.Tags {
			if err := s.assignTag(ctx, tx, user.ID, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.toResponse(ctx, user)
}

func (s *Service) Get(ctx context.Context, id string) (*userdomain.Response, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, user)
}

func (s *Service) List(ctx context.Context) ([]userdomain.Response, error) {
	users, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]userdomain.Response, 0, len(users))
	for i := range users {
		item, err := s.toResponse(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		resp = append(resp, *item)
	}
	return resp, nil
}

// IssueToken replaces the user's API token. The plain token is only returned
// here; the database keeps its hash.
func (s *Service) IssueToken(ctx context.Context, id string) (*userdomain.TokenResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	plain, hash, err := generateToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTokenHash(ctx, s.db, user.ID, hash); err != nil {
		return nil, err
	}

	s.log.Info("api token issued", zap.String("user_id", user.ID.String()))
	return &userdomain.TokenResponse{UserID: user.ID.String(), Token: plain}, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*userdomain.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if !strings.HasPrefix(rawToken, tokenPrefix) {
		return nil, userdomain.ErrInvalidToken
	}
	user, err := s.repo.FindByTokenHash(ctx, s.db, userdomain.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrInvalidToken
	}
	return user, nil
}

func (s *Service) AssignTag(ctx context.Context, id string, tag string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.assignTag(ctx, tx, user.ID, tag)
	})
}

func (s *Service) RemoveTag(ctx context.Context, id string, tag string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	name := normalizeTag(tag)
	if name == "" {
		return userdomain.ErrInvalidTag
	}
	existing, err := s.repo.FindTagByName(ctx, s.db, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return s.repo.RemoveUserTag(ctx, s.db, user.ID, existing.ID)
}

func (s *Service) assignTag(ctx context.Context, tx *gorm.DB, userID snowflake.ID, raw string) error {
	name := normalizeTag(raw)
	if name == "" {
		return userdomain.ErrInvalidTag
	}
	tag, err := s.repo.FindTagByName(ctx, tx, name)
	if err != nil {
		return err
	}
	if tag == nil {
		tag = &userdomain.Tag{ID: s.genID.Generate(), Name: name, CreatedAt: time.Now().UTC()}
		if err := s.repo.InsertTag(ctx, tx, tag); err != nil {
			return err
		}
	}
	return s.repo.AddUserTag(ctx, tx, userID, tag.ID)
}

func (s *Service) find(ctx context.Context, id string) (*userdomain.User, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || userID == 0 {
		return nil, userdomain.ErrInvalidUserID
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrNotFound
	}
	return user, nil
}

func (s *Service) toResponse(ctx context.Context, user *userdomain.User) (*userdomain.Response, error) {
	tags, err := s.repo.ListTagNames(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return &userdomain.Response{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		IsSuperuser: user.IsSuperuser,
		IsActive:    user.IsActive,
		Tags:        tags,
	}, nil
}

func normalizeTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func generateToken() (string, string, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Join(errors.New("token_generation_failed"), err)
	}
	plain := tokenPrefix + hex.EncodeToString(buf)
	return plain, userdomain.HashToken(plain), nil
}
