package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
)

type syncTaskRequest struct {
	CredentialID    string `json:"credential_id"`
	CreateIfMissing bool   `json:"create_if_missing"`
}

// syncResponse keeps the {success, message} shape of every sync operation.
type syncResponse struct {
	githubdomain.Result
	Summary any `json:"summary,omitempty"`
}

func (s *Server) SyncTaskWithGitHub(c *gin.Context) {
	var req syncTaskRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result := s.githubSvc.SyncTaskWithIssue(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(req.CredentialID),
		req.CreateIfMissing,
	)

	c.JSON(http.StatusOK, gin.H{"data": syncResponse{Result: result}})
}

func (s *Server) ListGitHubRepositories(c *gin.Context) {
	resp, err := s.githubSvc.ListRepositories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RegisterGitHubRepository(c *gin.Context) {
	var req githubdomain.RepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.Owner = strings.TrimSpace(req.Owner)
	req.Name = strings.TrimSpace(req.Name)
	req.CredentialID = strings.TrimSpace(req.CredentialID)

	resp, err := s.githubSvc.RegisterRepository(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// ImportGitHubIssues takes an optional {"state": "...", "numbers": [...]}.
func (s *Server) ImportGitHubIssues(c *gin.Context) {
	var filter githubdomain.ImportFilter
	if err := bindOptionalJSON(c, &filter); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	filter.State = strings.TrimSpace(filter.State)

	summary, result := s.githubSvc.ImportIssues(c.Request.Context(), strings.TrimSpace(c.Param("id")), filter)
	c.JSON(http.StatusOK, gin.H{"data": syncResponse{Result: result, Summary: summary}})
}

func (s *Server) SyncGitHubIssueComments(c *gin.Context) {
	summary, result := s.githubSvc.SyncIssueComments(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"data": syncResponse{Result: result, Summary: summary}})
}

// bindOptionalJSON treats an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
