package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

// Errors for sandbox operations.
var (
	// ErrSandboxInit is returned when a sandbox or its backing payload
	// cannot be initialized. It is fatal at startup.
	ErrSandboxInit = errors.New("sandbox initialization failed")

	// ErrArtifactNotFound is returned when a read or stage references a path
	// that does not exist in the sandbox's store.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrToolInvocation is returned when a tool exits non-zero or its entry
	// point fails.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrClosed is returned by operations on a closed sandbox or store.
	ErrClosed = errors.New("sandbox closed")
)

// InvocationError describes a failed entry-point call.
// It matches ErrToolInvocation with errors.Is.
type InvocationError struct {
	// Role is the role of the sandbox that ran the tool.
	Role Role

	// Args is the argument list the tool was invoked with.
	Args []string

	// ExitCode is the tool's exit status, or -1 if it never completed.
	ExitCode int

	// Diagnostics holds the lines the tool wrote to its diagnostic channel.
	Diagnostics []string

	// Err is the underlying entry-point error, if any.
	Err error
}

// Error returns a one-line description including the exit status or cause.
func (e *InvocationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Role.Tool(), ErrToolInvocation)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrToolInvocation.
func (e *InvocationError) Is(target error) bool {
	return target == ErrToolInvocation
}
