package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Mode    string `json:"mode,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidArgument = New("INVALID_ARGUMENT", http.StatusBadRequest, "invalid argument")
	ErrValidation      = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized    = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden       = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInternal        = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrNodeNotFound      = New("NODE_NOT_FOUND", http.StatusNotFound, "node not found")
	ErrShareNotFound     = New("SHARE_NOT_FOUND", http.StatusNotFound, "share not found")
	ErrReferenceNotFound = New("REFERENCE_NOT_FOUND", http.StatusNotFound, "share reference not found")
	ErrVersionNotFound   = New("VERSION_NOT_FOUND", http.StatusNotFound, "version not found")

	ErrConflict          = New("CONFLICT", http.StatusConflict, "conflict")
	ErrNodeAlreadyExists = New("NODE_ALREADY_EXISTS", http.StatusConflict, "a node with this name already exists")
	ErrNoLongerAvailable = New("NO_LONGER_AVAILABLE", http.StatusConflict, "node is no longer available")
	ErrNodeTypeMismatch  = New("NODE_TYPE_MISMATCH", http.StatusConflict, "a file and a collection can not be merged")
	ErrParentDeleted     = New("PARENT_DELETED", http.StatusConflict, "parent collection is deleted")
	ErrNestedShare       = New("NESTED_SHARE", http.StatusConflict, "shares can not be nested")
	ErrMoveIntoSelf      = New("MOVE_INTO_SELF", http.StatusConflict, "a collection can not be moved into itself")
	ErrInvalidOffset     = New("INVALID_OFFSET", http.StatusConflict, "invalid offset")
	ErrQuotaExceeded     = New("QUOTA_EXCEEDED", http.StatusConflict, "quota exceeded")
	ErrNotACollection    = New("NOT_A_COLLECTION", http.StatusBadRequest, "node is not a collection")
	ErrNotAFile          = New("NOT_A_FILE", http.StatusBadRequest, "node is not a file")
)

// Forbidden returns an access denial carrying the denied mode.
func Forbidden(mode string) *Error {
	clone := *ErrForbidden
	clone.Mode = mode
	clone.Message = fmt.Sprintf("access denied (mode %s)", mode)
	return &clone
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
