package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/sunbalance/internal/infra/transport"
	apperrors "github.com/yanqian/sunbalance/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// fromDomainError maps a store failure onto the envelope. Client errors reported by the
// remote API keep their status; anything else is treated as an upstream failure.
func fromDomainError(fallbackCode string, err error) *HTTPError {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = fallbackCode
	}
	status := http.StatusBadGateway
	var apiErr *transport.Error
	switch {
	case code == "invalid_input":
		status = http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		status = apiErr.Status
	}
	return NewHTTPError(status, code, transport.ExtractMessage(err), err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
