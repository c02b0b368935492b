package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CodeNoAuthorized is the sentinel returned by mutating table operations when
// the caller is not in the table's authorized address set. The value is shared
// with the execution layer and must not change.
const CodeNoAuthorized = -50000

// ErrorCode represents internal error codes for table operations
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Client errors
	ErrCodeInvalidArgument ErrorCode = 1000
	ErrCodeUnknownField    ErrorCode = 1001
	ErrCodeInvalidKey      ErrorCode = 1002
	ErrCodeNoAuthorized    ErrorCode = 1003
	ErrCodeBadCondition    ErrorCode = 1004

	// Server errors
	ErrCodeInternal          ErrorCode = 2000
	ErrCodeRemoteStoreFailed ErrorCode = 2001
	ErrCodeTableNotFound     ErrorCode = 2002
	ErrCodeCommitFailed      ErrorCode = 2003
	ErrCodeChecksumFailed    ErrorCode = 2004
)

// TableError represents a structured error with code and context
type TableError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *TableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *TableError) Unwrap() error {
	return e.Cause
}

// ToGRPCStatus converts TableError to gRPC status
func (e *TableError) ToGRPCStatus() *status.Status {
	return status.New(e.toGRPCCode(), e.Error())
}

// toGRPCCode maps internal error codes to gRPC codes
func (e *TableError) toGRPCCode() codes.Code {
	switch e.Code {
	case ErrCodeOK:
		return codes.OK
	case ErrCodeInvalidArgument, ErrCodeUnknownField, ErrCodeInvalidKey, ErrCodeBadCondition:
		return codes.InvalidArgument
	case ErrCodeNoAuthorized:
		return codes.PermissionDenied
	case ErrCodeTableNotFound:
		return codes.NotFound
	case ErrCodeRemoteStoreFailed, ErrCodeCommitFailed:
		return codes.Unavailable
	case ErrCodeChecksumFailed:
		return codes.DataLoss
	default:
		return codes.Internal
	}
}

// NewTableError creates a new TableError
func NewTableError(code ErrorCode, message string, cause error) *TableError {
	return &TableError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *TableError) WithDetail(key string, value interface{}) *TableError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidArgument(message string, cause error) *TableError {
	return NewTableError(ErrCodeInvalidArgument, message, cause)
}

func UnknownField(table, field string) *TableError {
	return NewTableError(ErrCodeUnknownField, fmt.Sprintf("field %q is not in the schema of table %q", field, table), nil).
		WithDetail("table", table).
		WithDetail("field", field)
}

func InvalidKey(key, reason string) *TableError {
	return NewTableError(ErrCodeInvalidKey, fmt.Sprintf("invalid key '%s': %s", key, reason), nil).
		WithDetail("key", key).
		WithDetail("reason", reason)
}

func NoAuthorized(table string, origin string) *TableError {
	return NewTableError(ErrCodeNoAuthorized, fmt.Sprintf("origin %s is not authorized on table %q", origin, table), nil).
		WithDetail("table", table).
		WithDetail("origin", origin)
}

func BadCondition(field, value string, cause error) *TableError {
	return NewTableError(ErrCodeBadCondition, fmt.Sprintf("non-numeric value in comparison on field %q: %q", field, value), cause).
		WithDetail("field", field).
		WithDetail("value", value)
}

func RemoteStoreFailed(message string, cause error) *TableError {
	return NewTableError(ErrCodeRemoteStoreFailed, message, cause)
}

func TableNotFound(table string) *TableError {
	return NewTableError(ErrCodeTableNotFound, fmt.Sprintf("table not found: %s", table), nil).
		WithDetail("table", table)
}

func CommitFailed(message string, cause error) *TableError {
	return NewTableError(ErrCodeCommitFailed, message, cause)
}

func ChecksumFailed(table string, expected, actual uint32) *TableError {
	return NewTableError(ErrCodeChecksumFailed, fmt.Sprintf("checksum mismatch on table %q: expected %d, got %d", table, expected, actual), nil).
		WithDetail("table", table).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

func InternalError(message string, cause error) *TableError {
	return NewTableError(ErrCodeInternal, message, cause)
}

// IsTableError checks if an error is a TableError
func IsTableError(err error) bool {
	_, ok := err.(*TableError)
	return ok
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if te, ok := err.(*TableError); ok {
		return te.Code
	}
	return ErrCodeInternal
}
