package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	"github.com/glitchidea/glichflow/internal/pricing"
)

// QuotePrice previews the totals of a package plus selected extra services
// without persisting anything.
func (s *Server) QuotePrice(c *gin.Context) {
	var req catalogdomain.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.GroupID = strings.TrimSpace(req.GroupID)
	req.PackageID = strings.TrimSpace(req.PackageID)
	for i := range req.Selections {
		req.Selections[i].ExtraServiceID = strings.TrimSpace(req.Selections[i].ExtraServiceID)
		req.Selections[i].Option = strings.TrimSpace(req.Selections[i].Option)
	}

	resp, err := s.catalogSvc.Quote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, quoteError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// quoteError points the validation error at the offending selection.
func quoteError(err error) error {
	var qErr *pricing.QuoteError
	if !errors.As(err, &qErr) || matchError(qErr.Err, validationErrors) == nil {
		return err
	}
	code := qErr.Err.Error()
	return newValidationError("selections."+qErr.ServiceID, code, validationErrorMessage(code))
}
