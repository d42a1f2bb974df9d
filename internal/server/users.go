package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glitchidea/glichflow/internal/authorization"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
)

type tagRequest struct {
	Tag string `json:"tag"`
}

// Me returns the caller and the capabilities resolved from their tags.
func (s *Server) Me(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.userSvc.Get(c.Request.Context(), userID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	caps := authorization.CapabilitiesFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"user":         resp,
		"capabilities": caps.Names(),
	}})
}

func (s *Server) ListUsers(c *gin.Context) {
	resp, err := s.userSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateUser(c *gin.Context) {
	var req userdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// IssueUserToken rotates the user's API token. The plain token is only
// returned here.
func (s *Server) IssueUserToken(c *gin.Context) {
	resp, err := s.userSvc.IssueToken(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssignUserTag(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.userSvc.AssignTag(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Tag)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveUserTag(c *gin.Context) {
	if err := s.userSvc.RemoveTag(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Param("tag"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
