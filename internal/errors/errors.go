package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeNotFound   ErrCode = "NOT_FOUND"
	ErrCodeInternal   ErrCode = "INTERNAL_ERROR"
	ErrCodeBadRequest ErrCode = "BAD_REQUEST"
	ErrCodeValidation ErrCode = "VALIDATION_ERROR"
	ErrCodeReference  ErrCode = "REFERENCE_ERROR"
	ErrCodeFetch      ErrCode = "FETCH_ERROR"
	ErrCodeParse      ErrCode = "PARSE_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeNotFound
	}
	return false
}

// FieldError describes one field of a record that does not match its schema
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Reason
}

// ValidationError lists every non-conforming field of a single record
type ValidationError struct {
	Collection string
	Entry      string
	Fields     []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%s/%s: invalid record: %s", e.Collection, e.Entry, strings.Join(parts, "; "))
}

// Code returns the error code
func (e *ValidationError) Code() ErrCode { return ErrCodeValidation }

// CollectionError aggregates every invalid record of one collection load
type CollectionError struct {
	Collection string
	Records    []*ValidationError
}

func (e *CollectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "collection %q: %d invalid record(s)", e.Collection, len(e.Records))
	for _, r := range e.Records {
		b.WriteString("\n  - ")
		b.WriteString(r.Error())
	}
	return b.String()
}

// Unwrap exposes the individual record errors to errors.As
func (e *CollectionError) Unwrap() []error {
	errs := make([]error, len(e.Records))
	for i, r := range e.Records {
		errs[i] = r
	}
	return errs
}

// ReferenceError reports a dangling cross-collection reference
type ReferenceError struct {
	From       string // "collection/id" of the referring record, empty when unknown
	Field      string
	Collection string
	ID         string
	Err        error
}

func (e *ReferenceError) Error() string {
	target := e.Collection + "/" + e.ID
	if e.From != "" {
		return fmt.Sprintf("%s: %s references missing entry %s", e.From, e.Field, target)
	}
	return fmt.Sprintf("dangling reference to %s", target)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// Code returns the error code
func (e *ReferenceError) Code() ErrCode { return ErrCodeReference }

// FetchError reports a failed call to an external API. StatusCode is zero
// when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %d %s", e.URL, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Code returns the error code
func (e *FetchError) Code() ErrCode { return ErrCodeFetch }

// Temporary reports whether another attempt could succeed
func (e *FetchError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// NewStatusError creates a FetchError for a non-success HTTP status. status
// is the response's status line ("404 Not Found" or "Not Found"); when empty
// the standard text for statusCode is used.
func NewStatusError(url string, statusCode int, status string) *FetchError {
	status = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(status), strconv.Itoa(statusCode)))
	if status == "" {
		status = http.StatusText(statusCode)
	}
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Status:     status,
	}
}

// ParseError reports a malformed external response
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code returns the error code
func (e *ParseError) Code() ErrCode { return ErrCodeParse }

// IsExternal reports whether err is a FetchError or ParseError, i.e. a
// failure the caller may degrade around instead of aborting.
func IsExternal(err error) bool {
	var fetchErr *FetchError
	var parseErr *ParseError
	return errors.As(err, &fetchErr) || errors.As(err, &parseErr)
}
