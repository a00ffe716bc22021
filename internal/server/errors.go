package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/habitquest/internal/catalog/domain"
	"github.com/smallbiznis/habitquest/internal/engine"
	ledgerdomain "github.com/smallbiznis/habitquest/internal/ledger/domain"
	"github.com/smallbiznis/habitquest/internal/lock"
	"github.com/smallbiznis/habitquest/internal/occurrence"
	profiledomain "github.com/smallbiznis/habitquest/internal/profile/domain"
	questdomain "github.com/smallbiznis/habitquest/internal/quest/domain"
	rewarddomain "github.com/smallbiznis/habitquest/internal/reward/domain"
	snapshotdomain "github.com/smallbiznis/habitquest/internal/snapshot/domain"
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
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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

	if isValidationError(err) {
		code := validationErrorCode(err)
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
	case errors.Is(err, occurrence.ErrAlreadyCompleted):
		// Terminal for this window; clients must not retry.
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    occurrence.ErrAlreadyCompleted.Error(),
			Message: "quest already completed for this period",
		}
	case errors.Is(err, questdomain.ErrQuestInactive):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    questdomain.ErrQuestInactive.Error(),
			Message: "quest is inactive",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    notFoundCode(err),
			Message: "not found",
		}
	case errors.Is(err, lock.ErrLockTimeout),
		errors.Is(err, ErrServiceUnavailable):
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

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	engine.ErrInvalidUser,
	engine.ErrInvalidQuest,
	engine.ErrOccurredInFuture,
	engine.ErrDomainMismatch,
	engine.ErrInvalidQuantity,
	catalogdomain.ErrInvalidDomainKey,
	profiledomain.ErrInvalidTimezone,
	profiledomain.ErrInvalidFirstDay,
	profiledomain.ErrInvalidWeeklyTarget,
	profiledomain.ErrInvalidDomain,
	questdomain.ErrInvalidSchedule,
	questdomain.ErrInvalidTitle,
	questdomain.ErrInvalidXP,
	questdomain.ErrInvalidPoints,
	ledgerdomain.ErrInvalidUser,
	ledgerdomain.ErrInvalidDomain,
	ledgerdomain.ErrInvalidOccurredAt,
	ledgerdomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidSource,
	ledgerdomain.ErrInvalidQuantity,
	ledgerdomain.ErrInvalidPageToken,
	rewarddomain.ErrInvalidUser,
	snapshotdomain.ErrInvalidUser,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var notFoundErrors = []error{
	ErrNotFound,
	profiledomain.ErrUserNotFound,
	catalogdomain.ErrDomainNotFound,
	catalogdomain.ErrTemplateNotFound,
	questdomain.ErrQuestNotFound,
	// Another user's quest looks missing so IDs cannot be probed.
	questdomain.ErrQuestNotOwned,
	snapshotdomain.ErrRebuildNotFound,
	gorm.ErrRecordNotFound,
}

func isNotFoundError(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func notFoundCode(err error) string {
	switch {
	case errors.Is(err, questdomain.ErrQuestNotOwned):
		return questdomain.ErrQuestNotFound.Error()
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound.Error()
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ErrNotFound.Error()
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	switch code {
	case engine.ErrOccurredInFuture.Error():
		return "occurred_at"
	case engine.ErrDomainMismatch.Error():
		return "domain_id"
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
	case "occurred_in_future":
		return "occurred_at is in the future"
	case "domain_mismatch":
		return "domain does not match the quest"
	default:
		return "invalid value"
	}
}
