package reel

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/filmreel/internal/doc"
	"github.com/roach88/filmreel/internal/placeholder"
	"github.com/roach88/filmreel/internal/query"
)

// ErrorCode categorizes reel failures.
type ErrorCode string

const (
	// ErrCodeParse indicates a malformed or schema-mismatched document.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeMissingVariable indicates a read or placeholder with no register value.
	ErrCodeMissingVariable ErrorCode = "MISSING_VARIABLE"

	// ErrCodePathQuery indicates a write expression that matched nothing.
	ErrCodePathQuery ErrorCode = "PATH_QUERY_ERROR"

	// ErrCodeMismatch indicates an observed response that fails the template.
	ErrCodeMismatch ErrorCode = "RESPONSE_MISMATCH"

	// ErrCodeFile indicates a referenced source that could not be loaded.
	ErrCodeFile ErrorCode = "FILE_ERROR"

	// ErrCodeTransport indicates the request could not be sent or timed out.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
)

// Error is the annotated failure surfaced by assembly and execution.
// Frame and Index identify the failing frame; Index is -1 when the failure
// is not tied to a frame (e.g. a cut file).
type Error struct {
	Code  ErrorCode
	Frame string
	Index int
	Err   error
}

func (e *Error) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Frame == "" {
		return fmt.Sprintf("%s: frame #%d: %v", e.Code, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: frame %q (#%d): %v", e.Code, e.Frame, e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FileError reports a source file that could not be loaded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// PathQueryError reports a write binding whose expression matched nothing.
type PathQueryError struct {
	Name string
	Expr string
	Err  error
}

func (e *PathQueryError) Error() string {
	return fmt.Sprintf("write %s = %s: %v", e.Name, e.Expr, e.Err)
}

func (e *PathQueryError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failed or timed-out send.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CodeOf classifies err. Errors that are not reel failures return "".
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return classify(err)
}

func classify(err error) ErrorCode {
	var (
		fe *FileError
		pq *PathQueryError
		te *TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return ErrCodeFile
	case errors.As(err, &te):
		return ErrCodeTransport
	case errors.As(err, &pq), query.IsNoMatch(err):
		return ErrCodePathQuery
	case placeholder.IsMissingVariable(err):
		return ErrCodeMissingVariable
	case placeholder.IsMismatch(err):
		return ErrCodeMismatch
	case doc.IsParseError(err):
		return ErrCodeParse
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTransport
	}
	return ""
}

// annotate wraps err with its code and frame position. Already annotated
// errors are returned unchanged.
func annotate(err error, name string, index int) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Code: classify(err), Frame: name, Index: index, Err: err}
}

// IsMissingVariable reports whether err is a missing variable failure.
func IsMissingVariable(err error) bool { return CodeOf(err) == ErrCodeMissingVariable }

// IsMismatch reports whether err is a response mismatch.
func IsMismatch(err error) bool { return CodeOf(err) == ErrCodeMismatch }

// IsPathQuery reports whether err is a failed write binding.
func IsPathQuery(err error) bool { return CodeOf(err) == ErrCodePathQuery }

// IsFileError reports whether err is a source loading failure.
func IsFileError(err error) bool { return CodeOf(err) == ErrCodeFile }

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return CodeOf(err) == ErrCodeTransport }
