package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")

	// Upload validation errors. None of them has side effects.

	// ErrEmptyInput indicates a zero-length upload
	ErrEmptyInput = errors.New("file is empty")

	// ErrFileTooLarge indicates an upload above the configured size limit
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")

	// ErrUnsupportedType indicates a declared content type outside the allow-list
	ErrUnsupportedType = errors.New("file type not allowed")

	// ErrSignatureMismatch indicates the leading bytes do not match the declared type
	ErrSignatureMismatch = errors.New("file content does not match declared type")

	// ErrUnreadable indicates the file header could not be read
	ErrUnreadable = errors.New("file appears to be corrupted")

	// ErrLimitExceeded indicates the node already holds the maximum number of attachments
	ErrLimitExceeded = errors.New("maximum attachments limit reached")

	// ErrStorageFailure indicates a blob write or delete failed
	ErrStorageFailure = errors.New("attachment storage failure")

	// ErrPersistFailure indicates the metadata store rejected an operation
	ErrPersistFailure = errors.New("attachment metadata failure")
)

// Error codes for API responses
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeEmptyInput        = "EMPTY_INPUT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"
	CodeSignatureMismatch = "SIGNATURE_MISMATCH"
	CodeUnreadable        = "UNREADABLE"
	CodeLimitExceeded     = "LIMIT_EXCEEDED"
	CodeStorageFailure    = "STORAGE_FAILURE"
	CodePersistFailure    = "PERSIST_FAILURE"
	CodeBulkDeleteFailed  = "BULK_DELETE_FAILED"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// New builds an AppError for a sentinel, deriving the code from it.
// The cause, when non-nil, stays reachable through errors.Is/As.
func New(kind error, cause error, format string, args ...any) *AppError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &AppError{
		Err:     err,
		Message: fmt.Sprintf(format, args...),
		Code:    GetErrorCode(kind),
	}
}

// DeleteFailure describes one attachment a cascade delete could not remove.
type DeleteFailure struct {
	AttachmentID   uint   `json:"attachment_id"`
	StoredFilename string `json:"stored_filename"`
	Reason         string `json:"reason"`
	Err            error  `json:"-"`
}

// BulkDeleteError aggregates the failures of a cascade delete. Attachments
// not listed here were removed.
type BulkDeleteError struct {
	NodeID   uint
	Failures []DeleteFailure
}

// Error implements the error interface
func (e *BulkDeleteError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, fmt.Sprintf("%d", f.AttachmentID))
	}
	return fmt.Sprintf("failed to delete %d attachment(s) of node %d: [%s]",
		len(e.Failures), e.NodeID, strings.Join(ids, ", "))
}

// Unwrap exposes every underlying failure to errors.Is/As
func (e *BulkDeleteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsValidation reports whether err is one of the upload validation failures.
// These are detected before any side effect.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrUnreadable)
}

// IsBulkDelete checks if the error is a cascade delete aggregate
func IsBulkDelete(err error) bool {
	var bulkErr *BulkDeleteError
	return errors.As(err, &bulkErr)
}

// GetBulkDeleteError extracts BulkDeleteError from an error if it exists
func GetBulkDeleteError(err error) *BulkDeleteError {
	var bulkErr *BulkDeleteError
	if errors.As(err, &bulkErr) {
		return bulkErr
	}
	return nil
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case IsBulkDelete(err):
		return CodeBulkDeleteFailed
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrEmptyInput):
		return CodeEmptyInput
	case errors.Is(err, ErrFileTooLarge):
		return CodeFileTooLarge
	case errors.Is(err, ErrUnsupportedType):
		return CodeUnsupportedType
	case errors.Is(err, ErrSignatureMismatch):
		return CodeSignatureMismatch
	case errors.Is(err, ErrUnreadable):
		return CodeUnreadable
	case errors.Is(err, ErrLimitExceeded):
		return CodeLimitExceeded
	case errors.Is(err, ErrStorageFailure):
		return CodeStorageFailure
	case errors.Is(err, ErrPersistFailure):
		return CodePersistFailure
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternalError
	}
}
