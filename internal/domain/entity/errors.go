package entity

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrSweetNotFound      = errors.New("sweet not found")
	ErrOutOfStock         = errors.New("sweet is out of stock")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthenticated    = errors.New("not authorized, token failed")
	ErrForbidden          = errors.New("not authorized as an admin")
	ErrDuplicateEmail     = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports rejected input. Fields maps a JSON field name to a
// human readable reason and may be empty.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
