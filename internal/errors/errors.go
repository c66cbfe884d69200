package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Quill error code.
type ErrorCode string

const (
	ErrInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER" // 400
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"       // 401
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrAlreadyExists     ErrorCode = "ALREADY_EXISTS"     // 409
	ErrTooFewEntries     ErrorCode = "TOO_FEW_ENTRIES"    // 409
	ErrCancelled         ErrorCode = "CANCELLED"          // 499
	ErrIOFailure         ErrorCode = "IO_FAILURE"         // 500
	ErrIndexCorrupt      ErrorCode = "INDEX_CORRUPT"      // 500
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// QuillError represents a structured error with code, status, and details.
type QuillError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *QuillError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidIdentifier creates a 400 error for identifiers outside the safe naming pattern.
func NewInvalidIdentifier(id string) *QuillError {
	return &QuillError{
		Code:    ErrInvalidIdentifier,
		Status:  400,
		Message: fmt.Sprintf("invalid identifier: %q", id),
		Details: map[string]any{"identifier": id},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QuillError {
	return &QuillError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for a missing or wrong admin credential.
func NewUnauthorized() *QuillError {
	return &QuillError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: "unauthorized",
	}
}

// NewNotFound creates a 404 error for when a prompt cannot be found.
func NewNotFound(identifier string) *QuillError {
	return &QuillError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("prompt not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewSnapshotNotFound creates a 404 error for a missing archived snapshot.
func NewSnapshotNotFound(snapshotID string) *QuillError {
	return &QuillError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("snapshot not found: %s", snapshotID),
		Details: map[string]any{"snapshot_id": snapshotID},
	}
}

// NewContentMissing creates a 404 error for an indexed prompt whose blob is gone.
// The index claims the prompt exists, so this is surfaced instead of empty content.
func NewContentMissing(id string) *QuillError {
	return &QuillError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("content missing for indexed prompt: %s", id),
		Details: map[string]any{"identifier": id, "indexed": true},
	}
}

// NewAlreadyExists creates a 409 error for create on an existing identifier.
func NewAlreadyExists(id string) *QuillError {
	return &QuillError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("prompt already exists: %s", id),
		Details: map[string]any{"identifier": id},
	}
}

// NewTooFewEntries creates a 409 error when the data-loss guard refuses to persist the index.
func NewTooFewEntries(floor, actual int) *QuillError {
	return &QuillError{
		Code:    ErrTooFewEntries,
		Status:  409,
		Message: fmt.Sprintf("refusing to save index with %d entries (minimum %d); retry or investigate", actual, floor),
		Details: map[string]any{"min_entries": floor, "actual_entries": actual},
	}
}

// NewIOFailure creates a 500 error wrapping an underlying read/write failure.
func NewIOFailure(op string, err error) *QuillError {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &QuillError{
		Code:    ErrIOFailure,
		Status:  500,
		Message: msg,
	}
}

// NewIndexCorrupt creates a 500 error when the metadata index cannot be trusted.
func NewIndexCorrupt(reason string) *QuillError {
	return &QuillError{
		Code:    ErrIndexCorrupt,
		Status:  500,
		Message: fmt.Sprintf("metadata index is corrupt: %s", reason),
	}
}

// NewCancelled creates a 499 error for an operation whose context ended
// before it started. 499 is the de facto "client closed request" status.
func NewCancelled(err error) *QuillError {
	return &QuillError{
		Code:    ErrCancelled,
		Status:  499,
		Message: "request cancelled: " + err.Error(),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *QuillError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &QuillError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a QuillError with the given code.
func Is(err error, code ErrorCode) bool {
	var qErr *QuillError
	if stderrors.As(err, &qErr) {
		return qErr.Code == code
	}
	return false
}

// As extracts a QuillError from err, converting anything else to an internal error.
func As(err error) *QuillError {
	if err == nil {
		return nil
	}
	var qErr *QuillError
	if stderrors.As(err, &qErr) {
		return qErr
	}
	return NewInternal(err)
}
