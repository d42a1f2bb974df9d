package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/glitchidea/glichflow/internal/config"
	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	defaultStateSize = 32
	publicGitHubURL  = "https://github.com"
)

// Scopes requested for issue and comment access on private repositories.
var Scopes = []string{"repo"}

// NewConfig builds the authorization-code flow configuration. A non-default
// OAuthBaseURL points the flow at a GitHub Enterprise host.
func NewConfig(cfg config.GitHubConfig) *oauth2.Config {
	endpoint := githuboauth.Endpoint
	base := strings.TrimRight(strings.TrimSpace(cfg.OAuthBaseURL), "/")
	if base != "" && base != publicGitHubURL {
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/login/oauth/authorize",
			TokenURL: base + "/login/oauth/access_token",
		}
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       Scopes,
		Endpoint:     endpoint,
	}
}

// WithHTTPClient makes x/oauth2 use client for token requests made with ctx.
func WithHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// Refresh exchanges refreshToken for a new token. The cached expiry is
// treated as already passed so x/oauth2 always contacts the token endpoint.
func Refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	return cfg.TokenSource(ctx, expired).Token()
}

func RandomState() (string, error) {
	buf := make([]byte, defaultStateSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
