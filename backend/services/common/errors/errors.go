package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same category (code and message).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of category carrying err as its cause. The category
// sentinels are never mutated.
func Wrap(category *Error, err error) *Error {
	return New(category.Code, category.Message, err)
}

// Status maps any error to an HTTP status, defaulting to 500.
func Status(err error) int {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Routing errors
var (
	ErrRouteNotFound       = New(http.StatusNotFound, "Route not found", nil)
	ErrUpstreamUnavailable = New(http.StatusBadGateway, "Service unreachable", nil)
	ErrUpgradeFailed       = New(http.StatusBadGateway, "Upgrade to upstream failed", nil)
)

// Order errors
var (
	ErrNotFound    = New(http.StatusNotFound, "Not found", nil)
	ErrValidation  = New(http.StatusBadRequest, "Validation error", nil)
	ErrPersistence = New(http.StatusInternalServerError, "Persistence failure, safe to retry", nil)
	ErrInternal    = New(http.StatusInternalServerError, "Internal server error", nil)
)

// Dependency errors
var ErrTooManyRequests = New(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)

// Abort renders err as {"error": message} and stops the gin chain.
func Abort(c *gin.Context, err error) {
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		appErr = Wrap(ErrInternal, err)
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}
