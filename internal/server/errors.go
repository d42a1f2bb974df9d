package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glitchidea/glichflow/internal/authorization"
	catalogdomain "github.com/glitchidea/glichflow/internal/catalog/domain"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	githubdomain "github.com/glitchidea/glichflow/internal/github/domain"
	"github.com/glitchidea/glichflow/internal/pricing"
	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"github.com/glitchidea/glichflow/internal/storage"
	taskdomain "github.com/glitchidea/glichflow/internal/task/domain"
	userdomain "github.com/glitchidea/glichflow/internal/user/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
)

var validationErrors = []error{
	ErrInvalidRequest,

	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidPercentage,
	catalogdomain.ErrInvalidMultiplier,
	catalogdomain.ErrInvalidPricingType,
	catalogdomain.ErrInvalidInputType,
	catalogdomain.ErrInvalidQuantityBounds,
	catalogdomain.ErrInvalidOptions,
	catalogdomain.ErrInvalidPackage,

	pricing.ErrQuantityOutOfRange,
	pricing.ErrInvalidQuantity,
	pricing.ErrNegativeAmount,
	pricing.ErrUnknownService,
	pricing.ErrInactiveService,
	pricing.ErrInvalidOption,

	saledomain.ErrInvalidID,
	saledomain.ErrInvalidCustomer,
	saledomain.ErrInvalidProject,
	saledomain.ErrInvalidPackage,
	saledomain.ErrInvalidPrice,
	saledomain.ErrInvalidDates,
	saledomain.ErrInvalidStatus,
	saledomain.ErrInvalidLine,
	saledomain.ErrInvalidExtraService,
	saledomain.ErrInactiveExtraService,
	saledomain.ErrInvalidQuantity,
	saledomain.ErrInvalidOption,
	saledomain.ErrInvalidCostType,
	saledomain.ErrInvalidCostName,
	saledomain.ErrInvalidPaymentAmount,
	saledomain.ErrInvalidPaymentMethod,
	saledomain.ErrInvalidFileKind,
	saledomain.ErrInvalidFile,

	taskdomain.ErrInvalidID,
	taskdomain.ErrInvalidName,
	taskdomain.ErrInvalidTitle,
	taskdomain.ErrInvalidProject,
	taskdomain.ErrInvalidStatus,
	taskdomain.ErrInvalidPriority,
	taskdomain.ErrInvalidAssignee,

	commdomain.ErrInvalidID,
	commdomain.ErrInvalidTitle,
	commdomain.ErrEmptyMessage,
	commdomain.ErrMessageTooLong,
	commdomain.ErrSelfMessage,
	commdomain.ErrInvalidCursor,

	githubdomain.ErrInvalidID,
	githubdomain.ErrInvalidRepository,
	githubdomain.ErrInvalidCode,
	githubdomain.ErrInvalidPayload,

	userdomain.ErrInvalidUsername,
	userdomain.ErrInvalidEmail,
	userdomain.ErrInvalidTag,
	userdomain.ErrInvalidUserID,
}

var notFoundErrors = []error{
	ErrNotFound,
	catalogdomain.ErrNotFound,
	saledomain.ErrNotFound,
	taskdomain.ErrNotFound,
	commdomain.ErrNotFound,
	githubdomain.ErrNotFound,
	userdomain.ErrNotFound,
	storage.ErrObjectNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	ErrConflict,
	catalogdomain.ErrGroupNameTaken,
	catalogdomain.ErrPackageNameTaken,
	saledomain.ErrInvalidTransition,
	saledomain.ErrSaleClosed,
	commdomain.ErrThreadExists,
	githubdomain.ErrRepositoryExists,
	userdomain.ErrUsernameTaken,
}

var unauthorizedErrors = []error{
	ErrUnauthorized,
	userdomain.ErrInvalidToken,
	authorization.ErrInvalidActor,
	githubdomain.ErrInvalidSignature,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := matchError(err, validationErrors); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case matchError(err, unauthorizedErrors) != nil:
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case matchError(err, conflictErrors) != nil:
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: matchError(err, conflictErrors).Error(),
		}
	case matchError(err, notFoundErrors) != nil:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrPayloadTooLarge),
		errors.Is(err, saledomain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "payload too large",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, githubdomain.ErrOAuthDisabled):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// matchError returns the first sentinel err wraps, or nil.
func matchError(err error, sentinels []error) error {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "quantity_out_of_range":
		return "quantity outside the allowed range"
	case "unknown_service", "inactive_service", "inactive_extra_service":
		return "extra service is not available"
	case "empty_message":
		return "message body is empty"
	case "message_too_long":
		return "message body is too long"
	case "self_direct_message":
		return "cannot message yourself"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger a low-cardinality type/code.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "server", code
	}
	return "client", code
}
