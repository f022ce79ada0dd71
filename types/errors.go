package types

import (
	"fmt"
)

// MalformedModuleError is returned when the module bytes are not a valid
// container of the expected format and version. It is never retryable.
type MalformedModuleError struct {
	// Offset is the byte offset in the input where decoding failed.
	Offset int
	Reason string
}

var _ error = (*MalformedModuleError)(nil)

func (e *MalformedModuleError) Error() string {
	return fmt.Sprintf("malformed module at offset %d: %s", e.Offset, e.Reason)
}

// HostPanicError is raised when the module itself aborts the current
// invocation through one of the panic host functions. This is how a contract
// rejects invalid arguments or a failed precondition.
type HostPanicError struct {
	// Function is the host function the module called to abort.
	Function string
	Message  string
}

var _ error = (*HostPanicError)(nil)

func (e *HostPanicError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("contract panicked (%s)", e.Function)
	}
	return fmt.Sprintf("contract panicked (%s): %s", e.Function, e.Message)
}

// InternalError reports a defect in the estimator itself, for example a host
// function invoked with a pointer outside of linear memory.
type InternalError struct {
	Function string
	Err      error
}

var _ error = (*InternalError)(nil)

func (e *InternalError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("estimator internal error: %v", e.Err)
	}
	return fmt.Sprintf("estimator internal error in %s: %v", e.Function, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// NewInternalError creates an InternalError for the given host function.
func NewInternalError(function string, format string, args ...interface{}) *InternalError {
	return &InternalError{Function: function, Err: fmt.Errorf(format, args...)}
}

// EstimationError describes which measurement failed and why.
// The cause is reachable with errors.As, so a *HostPanicError stays
// distinguishable from an *InternalError.
type EstimationError struct {
	Description string
	Method      string
	Err         error
}

var _ error = (*EstimationError)(nil)

func (e *EstimationError) Error() string {
	return fmt.Sprintf("estimating %q (%s): %v", e.Description, e.Method, e.Err)
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}
