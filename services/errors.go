package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("access denied: admin privileges required")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInternal           = errors.New("server error")
	ErrUnavailable        = errors.New("service temporarily unavailable")

	ErrCurrentPassword = fmt.Errorf("%w: current password is incorrect", ErrInvalidCredentials)
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"msg"`
}

// ValidationError carries field-level detail. Msg summarises when there is
// no single field to blame.
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Msg == "" {
			return ErrValidation.Error()
		}
		return e.Msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a uniqueness clash on Field ("email" or "username").
type ConflictError struct {
	Field string
}

func (e ConflictError) Error() string {
	switch e.Field {
	case "email":
		return "user with this email already exists"
	case "username":
		return "username already taken"
	default:
		return ErrConflict.Error()
	}
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// IsConflict reports whether err is a ConflictError and returns its field.
func IsConflict(err error) (string, bool) {
	var ce ConflictError
	if errors.As(err, &ce) {
		return ce.Field, true
	}
	return "", false
}
