package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FallbackMessage is reported when no better description of a failure exists.
const FallbackMessage = "Unexpected error"

// Error is the uniform shape of every failed API call: either the server answered with a
// non-2xx status, or no usable response arrived (Status == 0).
type Error struct {
	Method     string
	Path       string
	Status     int
	Detail     string
	ErrorField string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, ExtractMessage(e))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TransportMessage is the generic description of the failure, without server supplied fields.
func (e *Error) TransportMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("request failed with status code %d", e.Status)
	}
	return ""
}

// ExtractMessage turns any error into a human readable message. For API failures it prefers
// the structured detail field, then the structured error field, then the transport message.
func ExtractMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		for _, candidate := range []string{apiErr.Detail, apiErr.ErrorField, apiErr.TransportMessage()} {
			if strings.TrimSpace(candidate) != "" {
				return candidate
			}
		}
		return FallbackMessage
	}
	if msg := err.Error(); strings.TrimSpace(msg) != "" {
		return msg
	}
	return FallbackMessage
}

// newStatusError decodes the structured fields of an error body. Bodies that are not JSON
// objects leave Detail and ErrorField empty.
func newStatusError(method, path string, status int, body []byte) *Error {
	apiErr := &Error{Method: method, Path: path, Status: status, Body: body}
	var raw struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}
	apiErr.Detail = coerceMessage(raw.Detail)
	apiErr.ErrorField = coerceMessage(raw.Error)
	return apiErr
}

// coerceMessage accepts a string, a list of strings, or an object carrying a message field.
func coerceMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	switch raw[0] {
	case '"':
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return ""
		}
		return strings.TrimSpace(single)
	case '[':
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return ""
		}
		return strings.TrimSpace(strings.Join(many, " "))
	case '{':
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		return strings.TrimSpace(obj.Message)
	default:
		return ""
	}
}
