package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/database/school"
	"github.com/schooldesk/schooldesk/internal/logger"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // per-field validation messages
}

// SuccessResponse is a standard success response with a message.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "bad_request"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	log := logger.Get()
	log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("op", context).
		Msg("internal error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondError maps a domain error onto its HTTP status and body.
// Unknown errors become a logged 500 whose message is never echoed.
func respondError(c *gin.Context, err error) {
	var validationErr *auth.ValidationError
	var rateErr *auth.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Code:    "validation_error",
			Details: validationErr.Fields,
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrInvalidCredentials.Error(), Code: "invalid_credentials"})
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrStateMismatch):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: auth.ErrUnauthorized.Error(), Code: "unauthorized"})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: auth.ErrForbidden.Error(), Code: "forbidden"})
	case errors.As(err, &rateErr):
		c.Header("Retry-After", auth.RetryAfterSeconds(rateErr.RetryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: auth.ErrTooManyAttempts.Error(), Code: "too_many_attempts"})
	case errors.Is(err, auth.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: auth.ErrTooManyAttempts.Error(), Code: "too_many_attempts"})
	case errors.Is(err, school.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, school.ErrDuplicate), errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict"})
	default:
		respondInternalError(c, err, c.FullPath())
	}
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with {"success": true}.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: message})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// --- Parameter Parsing Helpers ---

// parseIDParam parses a uint ID from a URL parameter.
// Returns the ID and true on success, or sends a 400 response and returns false on failure.
func parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+param)
		return 0, false
	}
	return uint(id), true
}

// --- Request Binding ---

// moneyPattern accepts non-negative decimal amounts with up to two places.
var moneyPattern = regexp.MustCompile(`^\d{1,10}(\.\d{1,2})?$`)

var (
	registerOnce sync.Once
	registerErr  error
)

// customRules are the validation tags added on top of validator/v10's.
var customRules = map[string]validator.Func{
	"money": func(fl validator.FieldLevel) bool {
		return moneyPattern.MatchString(fl.Field().String())
	},
}

// registerValidators configures gin's validator once and returns the
// outcome of that first attempt on every call.
func registerValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
		registerErr = registerRules(v, customRules)
	})
	return registerErr
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q validation: %w", tag, err)
		}
	}
	return nil
}

// bindJSON decodes and validates the request body into dst. On failure it
// writes a 400 with per-field details and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	if err := registerValidators(); err != nil {
		respondInternalError(c, err, "register validators")
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, toValidationError(err))
		return false
	}
	return true
}

func toValidationError(err error) *auth.ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return auth.NewValidationError("body", "must be a valid JSON object")
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &auth.ValidationError{Fields: fields}
}

// fieldMessage converts a single validator error into a readable message.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "money":
		return "must be a decimal amount with at most two places"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed validation (%s)", fe.Tag())
	}
}
