package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/github/oauth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// AuthorizeURL starts the authorization-code flow. The caller keeps State
// and compares it on the callback.
func (s *Service) AuthorizeURL(ctx context.Context) (*githubdomain.AuthorizeResponse, error) {
	if !s.cfg.OAuthEnabled() {
		return nil, githubdomain.ErrOAuthDisabled
	}
	state, err := oauth.RandomState()
	if err != nil {
		return nil, err
	}
	return &githubdomain.AuthorizeResponse{
		URL:   s.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline),
		State: state,
	}, nil
}

// ExchangeCode stores the token for userID, or the system-wide credential
// when userID is empty. An existing credential for the same owner is
// replaced.
func (s *Service) ExchangeCode(ctx context.Context, userID string, code string) (*githubdomain.CredentialResponse, error) {
	if !s.cfg.OAuthEnabled() {
		return nil, githubdomain.ErrOAuthDisabled
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, githubdomain.ErrInvalidCode
	}
	var owner *snowflake.ID
	if strings.TrimSpace(userID) != "" {
		id, err := parseID(userID)
		if err != nil {
			return nil, err
		}
		owner = &id
	}

	token, err := s.oauthCfg.Exchange(oauth.WithHTTPClient(ctx, s.httpClient), code)
	if err != nil {
		s.log.Warn("github code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", githubdomain.ErrInvalidCode, err)
	}

	var cred *githubdomain.Credential
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		existing, err := s.repo.FindCredentialByUser(ctx, tx, owner)
		if err != nil {
			return err
		}
		if existing != nil {
			applyToken(existing, token)
			existing.UpdatedAt = now
			cred = existing
			return s.repo.UpdateCredentialToken(ctx, tx, existing)
		}
		cred = &githubdomain.Credential{
			ID:        s.genID.Generate(),
			UserID:    owner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyToken(cred, token)
		return s.repo.InsertCredential(ctx, tx, cred)
	})
	if err != nil {
		return nil, err
	}

	resp := &githubdomain.CredentialResponse{
		ID:        cred.ID.String(),
		TokenType: cred.TokenType,
		ExpiresAt: cred.ExpiresAt,
	}
	if cred.UserID != nil {
		id := cred.UserID.String()
		resp.UserID = &id
	}
	return resp, nil
}
