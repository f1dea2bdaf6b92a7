// Package errors defines the error taxonomy shared by every vecta component.
// Categories are sentinel errors; AppError attaches the failing operation,
// the path it acted on and the underlying cause while still matching both
// the category and the cause with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrSchema          = errors.New("invalid schema")
	ErrSchemaMismatch  = errors.New("schema mismatch")
	ErrIndexOpen       = errors.New("cannot open index")
	ErrLockContention  = errors.New("index is locked by another writer")
	ErrIngest          = errors.New("cannot ingest document")
	ErrCommit          = errors.New("commit failed")
	ErrMerge           = errors.New("merge failed")
	ErrQueryParse      = errors.New("invalid query")
	ErrSearchExecution = errors.New("search failed")
	ErrInvalidInput    = errors.New("invalid input")
)

// AppError is a categorised failure. Err is always one of the sentinels
// above; Cause is whatever went wrong underneath and may be nil.
type AppError struct {
	Err     error
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Path != "" {
			b.WriteString(" ")
			b.WriteString(e.Path)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func New(sentinel error, op, path, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Op:      op,
		Path:    path,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap categorises cause under sentinel. A nil cause yields nil.
func Wrap(sentinel error, op, path string, cause error) error {
	if cause == nil {
		return nil
	}
	return &AppError{
		Err:   sentinel,
		Op:    op,
		Path:  path,
		Cause: cause,
	}
}

// Category returns the sentinel that classifies err, or nil when err is not
// one of ours.
func Category(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Err
	}
	for _, sentinel := range []error{
		ErrSchemaMismatch, ErrSchema, ErrLockContention, ErrIndexOpen,
		ErrIngest, ErrCommit, ErrMerge, ErrQueryParse, ErrSearchExecution,
		ErrInvalidInput,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrQueryParse), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrLockContention):
		return http.StatusConflict
	case errors.Is(err, ErrSearchExecution), errors.Is(err, ErrIndexOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrQueryParse):
		return 2
	case errors.Is(err, ErrLockContention):
		return 3
	case errors.Is(err, ErrSchema), errors.Is(err, ErrSchemaMismatch):
		return 4
	default:
		return 1
	}
}
