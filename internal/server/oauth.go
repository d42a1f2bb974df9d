package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glitchidea/glichflow/internal/authorization"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	oauthStateCookie = "github_oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

var errInvalidOAuthState = newValidationError("state", "invalid_state", "oauth state mismatch")

// GitHubOAuthAuthorize starts the OAuth dance for the caller. ?system=true
// links the shared system credential instead and needs github.admin.
func (s *Server) GitHubOAuthAuthorize(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	system, err := parseOptionalBool(c.Query("system"))
	if err != nil {
		AbortWithError(c, newValidationError("system", "invalid_system", "invalid system"))
		return
	}
	owner := userID.String()
	if system != nil && *system {
		if !hasCapability(c, authorization.CapGitHubAdmin) {
			AbortWithError(c, authorization.ErrForbidden)
			return
		}
		owner = ""
	}

	resp, err := s.githubSvc.AuthorizeURL(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.setOAuthCookie(c, oauthStateCookie, s.signOAuthState(resp.State, owner), oauthStateTTL)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GitHubOAuthCallback is the redirect target registered with GitHub. The
// cookie set by GitHubOAuthAuthorize binds the state to the credential owner.
func (s *Server) GitHubOAuthCallback(c *gin.Context) {
	ctx := c.Request.Context()
	if !s.cfg.GitHub.OAuthEnabled() {
		AbortWithError(c, githubdomain.ErrOAuthDisabled)
		return
	}

	cookie, _ := c.Cookie(oauthStateCookie)
	s.clearCookie(c, oauthStateCookie)

	if reason := strings.TrimSpace(c.Query("error")); reason != "" {
		logger.FromContext(ctx).Warn("github oauth denied", zap.String("reason", reason))
		AbortWithError(c, githubdomain.ErrInvalidCode)
		return
	}

	owner, ok := s.verifyOAuthState(cookie, strings.TrimSpace(c.Query("state")))
	if !ok {
		AbortWithError(c, errInvalidOAuthState)
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		AbortWithError(c, githubdomain.ErrInvalidCode)
		return
	}

	resp, err := s.githubSvc.ExchangeCode(ctx, owner, code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// signOAuthState encodes state|owner|mac.
func (s *Server) signOAuthState(state, owner string) string {
	payload := state + "|" + owner
	return payload + "|" + s.oauthStateMAC(payload)
}

func (s *Server) verifyOAuthState(cookie, state string) (string, bool) {
	parts := strings.Split(cookie, "|")
	if state == "" || len(parts) != 3 {
		return "", false
	}
	if !hmac.Equal([]byte(parts[0]), []byte(state)) {
		return "", false
	}
	expected := s.oauthStateMAC(parts[0] + "|" + parts[1])
	if !hmac.Equal([]byte(parts[2]), []byte(expected)) {
		return "", false
	}
	return parts[1], true
}

func (s *Server) oauthStateMAC(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.GitHub.ClientSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) setOAuthCookie(c *gin.Context, name string, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/api/github/oauth", "", s.cfg.IsProduction(), true)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/api/github/oauth", "", s.cfg.IsProduction(), true)
}
