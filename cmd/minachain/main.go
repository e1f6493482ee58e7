// Command minachain compiles, assembles, runs and analyzes C programs with a
// sandboxed RISC-V toolchain.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/minachain/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(newApp(os.Stdout, os.Stderr)).ExecuteContext(ctx)
	stop()
	os.Exit(exitStatus(err))
}

// exitStatus maps a command error to the process exit status. A program's
// own nonzero exit code is passed through unchanged.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Stage == pipeline.StageRunning && se.ExitCode > 0 {
		return se.ExitCode
	}
	fmt.Fprintln(os.Stderr, "minachain:", err)
	return 1
}

// exitError carries a nonzero program exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}
