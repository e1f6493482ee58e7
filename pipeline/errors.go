package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/minachain/sandbox"
)

// Sentinel errors for error classification.
var (
	// ErrStageSequenceAborted indicates that a composed operation stopped
	// after a stage failed; the remaining stages were not attempted.
	ErrStageSequenceAborted = errors.New("stage sequence aborted")

	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidBinaryName is returned by LoadBinary and RunBinary for names
	// that are not a single path element.
	ErrInvalidBinaryName = errors.New("invalid binary name")
)

// StageError attributes a failure to the stage that produced it.
// Use errors.Is with sandbox.ErrArtifactNotFound or sandbox.ErrToolInvocation
// to classify the cause.
type StageError struct {
	// Stage is the failing stage.
	Stage Stage

	// Path is the artifact the stage was working on.
	Path string

	// ExitCode is the tool's exit status, or 0 if no tool ran.
	ExitCode int

	// Diagnostics holds the tool's diagnostic output, if a tool ran.
	Diagnostics []string

	// Err is the underlying error.
	Err error
}

func newStageError(stage Stage, path string, err error) *StageError {
	se := &StageError{Stage: stage, Path: path, Err: err}
	var invErr *sandbox.InvocationError
	if errors.As(err, &invErr) {
		se.ExitCode = invErr.ExitCode
		se.Diagnostics = invErr.Diagnostics
	}
	return se
}

// Error returns the stage, path and cause.
func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Stage.Title())
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// AbortError is returned by composed operations when a stage fails.
// It matches ErrStageSequenceAborted and unwraps to the stage's error.
type AbortError struct {
	// Failed is the stage that failed.
	Failed Stage

	// Skipped lists the stages that were not attempted, in order.
	Skipped []Stage

	// Err is the failing stage's error, normally a *StageError.
	Err error
}

// Error returns the failing stage, the skipped stages and the cause.
func (e *AbortError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s", ErrStageSequenceAborted, e.Failed)
	if len(e.Skipped) > 0 {
		names := make([]string, len(e.Skipped))
		for i, s := range e.Skipped {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, " (skipped %s)", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the failing stage's error.
func (e *AbortError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStageSequenceAborted.
func (e *AbortError) Is(target error) bool {
	return target == ErrStageSequenceAborted
}
