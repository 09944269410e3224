package novaauth

import (
	"encoding/json"
	"net/http"
)

// Error codes used across the auth flows.
const (
	ErrCodeValidation     = "validation_error"
	ErrCodeConflict       = "conflict"
	ErrCodeNotFound       = "not_found"
	ErrCodeAuthentication = "authentication_failed"
	ErrCodeUnverified     = "unverified_account"
	ErrCodeDependency     = "dependency_failed"
)

// AuthError is a client-presentable authentication failure. Message is
// safe to serialize; anything sensitive stays in server logs.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates an AuthError with a code, message and optional
// field name indicating which input was at fault.
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// Status maps the error code to its HTTP status. Failures are always
// non-2xx.
func (e *AuthError) Status() int {
	switch e.Code {
	case ErrCodeValidation, ErrCodeConflict:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAuthentication, ErrCodeUnverified:
		return http.StatusUnauthorized
	case ErrCodeDependency:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// WriteAuthError writes the error as a JSON response with its status.
func WriteAuthError(w http.ResponseWriter, err *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": err.Message,
		"code":    err.Code,
		"field":   err.Field,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
