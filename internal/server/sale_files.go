package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glitchidea/glichflow/internal/observability/logger"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for the form boundary and the other fields.
const multipartOverhead = 1 << 20

// UploadSaleFile accepts multipart/form-data with a "file" part and a "kind"
// field (attachment or receipt).
func (s *Server) UploadSaleFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, newValidationError("file", "invalid_file", "file is required"))
		return
	}
	if header.Size > maxUploadBytes {
		AbortWithError(c, saledomain.ErrFileTooLarge)
		return
	}

	body, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer func() {
		if err := body.Close(); err != nil {
			logger.FromContext(c.Request.Context()).Warn("close upload", zap.Error(err))
		}
	}()

	resp, err := s.saleSvc.UploadFile(c.Request.Context(), strings.TrimSpace(c.Param("id")), saledomain.UploadRequest{
		Kind:        strings.TrimSpace(c.PostForm("kind")),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) RemoveSaleFile(c *gin.Context) {
	err := s.saleSvc.RemoveFile(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("fileId")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
