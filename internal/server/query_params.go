package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// pageBounds describes a ?limit= query: missing means Default, anything
// outside [1, Max] is rejected.
type pageBounds struct {
	Default int
	Max     int
}

var (
	salePage    = pageBounds{Default: 50, Max: 200}
	messagePage = pageBounds{Default: 50, Max: 200}
)

func (b pageBounds) limit(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return b.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > b.Max {
		return 0, newValidationError("limit", "invalid_limit", "limit must be between 1 and "+strconv.Itoa(b.Max))
	}
	return n, nil
}

func queryOffset(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("offset"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, newValidationError("offset", "invalid_offset", "invalid offset")
	}
	return n, nil
}

// parseOptionalBool returns nil for an empty value so callers can tell
// "not filtered" from false.
func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
