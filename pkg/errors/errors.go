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

// Is reports whether target carries the same code, so clones with custom
// messages still match the predefined values through errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
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

// Predefined errors for the registration domain.
var (
	ErrNotFound              = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrTeacherNotFound       = New("TEACHER_NOT_FOUND", http.StatusNotFound, "the specified teacher does not exist")
	ErrAlreadyExists         = New("ALREADY_EXISTS", http.StatusConflict, "resource already exists")
	ErrAlreadyRegistered     = New("ALREADY_REGISTERED", http.StatusConflict, "student is already registered to this course")
	ErrCreditLimitExceeded   = New("CREDIT_LIMIT_EXCEEDED", http.StatusUnprocessableEntity, "the student would exceed the credit limit")
	ErrCourseFull            = New("COURSE_FULL", http.StatusUnprocessableEntity, "the course has no available places")
	ErrNotTeachingThisCourse = New("NOT_TEACHING_THIS_COURSE", http.StatusUnprocessableEntity, "the teacher is not teaching this course")
	ErrInvalidCredentials    = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrUnauthorized          = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden             = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrValidation            = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal              = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss             = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

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

// Internal wraps an infrastructure failure as ErrInternal with a message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
