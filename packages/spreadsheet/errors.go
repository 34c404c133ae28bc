package spreadsheet

import (
	"errors"
	"fmt"
	"strings"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., sheet or vertex) was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates operation was rejected because the
	// system is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range.
	OutOfRange AppErrorCode = 11

	// Internal errors. Means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

// AppError represents errors at the application level (not
// spreadsheet formula errors). These are the structural errors: they abort
// the operation that raised them.
type AppError struct {
	Code    AppErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by code and message so wrapped copies still compare.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func wrapApplicationError(sentinel *AppError, format string, args ...any) *AppError {
	return &AppError{
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Cause:   fmt.Errorf(format, args...),
	}
}

var (
	ErrNodeNotFound       = NewApplicationError(NotFound, "vertex not found")
	ErrCircularDependency = NewApplicationError(FailedPrecondition, "circular dependency")
	ErrDifferentSheets    = NewApplicationError(InvalidArgument, "range spans different sheets")
	ErrSheetNotFound      = NewApplicationError(NotFound, "sheet not found")
	ErrSheetExists        = NewApplicationError(AlreadyExists, "sheet already exists")
	ErrInvalidArgument    = NewApplicationError(InvalidArgument, "invalid argument")
	ErrInvalidAddress     = NewApplicationError(InvalidArgument, "invalid cell address")
)

// CircularDependencyError is returned by TopologicalOrder when the dirty
// subgraph contains cycles. Each entry lists the members of one cycle.
type CircularDependencyError struct {
	Cycles [][]VertexID
}

func (e *CircularDependencyError) Error() string {
	parts := make([]string, 0, len(e.Cycles))
	for _, cycle := range e.Cycles {
		ids := make([]string, 0, len(cycle))
		for _, id := range cycle {
			ids = append(ids, fmt.Sprint(id))
		}
		parts = append(parts, "["+strings.Join(ids, " ")+"]")
	}
	return "circular dependency: " + strings.Join(parts, ", ")
}

func (e *CircularDependencyError) Is(target error) bool {
	return errors.Is(ErrCircularDependency, target)
}

// Members returns every vertex taking part in any cycle.
func (e *CircularDependencyError) Members() map[VertexID]struct{} {
	out := make(map[VertexID]struct{})
	for _, cycle := range e.Cycles {
		for _, id := range cycle {
			out[id] = struct{}{}
		}
	}
	return out
}
