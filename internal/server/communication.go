package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/pkg/db/pagination"
)

type directMessageRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) ListNotifications(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commSvc.ListNotifications(c.Request.Context(), userID.String(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnreadNotificationCount(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count, err := s.commSvc.UnreadCount(c.Request.Context(), userID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"unread": count}})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.commSvc.MarkRead(c.Request.Context(), userID.String(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) CreateThread(c *gin.Context) {
	var req commdomain.ThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commSvc.CreateThread(c.Request.Context(), commdomain.ThreadRequest{
		TaskID: strings.TrimSpace(req.TaskID),
		Title:  strings.TrimSpace(req.Title),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetThread(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commSvc.GetThread(c.Request.Context(), userID.String(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListThreadMessages supports polling: ?after=<message id> returns only newer
// messages, oldest first.
func (s *Server) ListThreadMessages(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	limit, err := messagePage.limit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commSvc.ListMessages(c.Request.Context(),
		userID.String(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Query("after")),
		limit,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PostThreadMessage(c *gin.Context) {
	var req commdomain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.SenderID = userID.String()

	resp, err := s.commSvc.PostMessage(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// GetOrCreateDirectMessage answers 201 when the conversation is new.
func (s *Server) GetOrCreateDirectMessage(c *gin.Context) {
	var req directMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commSvc.GetOrCreateDirectMessage(c.Request.Context(), userID.String(), strings.TrimSpace(req.UserID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": resp})
}
