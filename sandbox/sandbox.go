package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DataDir is the conventional working directory present in every sandbox.
const DataDir = "/data"

// Logger is the interface for logging.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// EntryPoint runs a tool to completion.
//
// Contract:
// - The tool may only touch inv.Store.
// - Output written to inv.Stdout and inv.Stderr is split into lines by the
//   sandbox; the entry point must not retain the writers after returning.
// - The returned int is the tool's exit status. A non-nil error means the
//   tool could not run or crashed.
type EntryPoint interface {
	Main(ctx context.Context, inv *Invocation) (int, error)
}

// EntryFunc adapts a function to EntryPoint.
type EntryFunc func(ctx context.Context, inv *Invocation) (int, error)

// Main calls f.
func (f EntryFunc) Main(ctx context.Context, inv *Invocation) (int, error) {
	return f(ctx, inv)
}

// Invocation is what an entry point sees for one call.
type Invocation struct {
	// Args is the argument list, excluding the program name.
	Args []string

	// Store is the sandbox's file store.
	Store *Store

	// Stdout is the normal output channel.
	Stdout io.Writer

	// Stderr is the diagnostic output channel.
	Stderr io.Writer
}

// Record describes one completed invocation.
type Record struct {
	// ID uniquely identifies the invocation in logs.
	ID string

	// Role is the sandbox role.
	Role Role

	// Args is the argument list.
	Args []string

	// ExitCode is the tool's exit status.
	ExitCode int

	// Diagnostics holds the diagnostic-channel lines.
	Diagnostics []string

	// Duration is the wall time of the call.
	Duration time.Duration
}

// Config configures a Sandbox.
type Config struct {
	// Role identifies the hosted tool.
	// Required.
	Role Role

	// Entry runs the tool.
	// Required.
	Entry EntryPoint

	// Dir is the host directory backing the store. If empty, a private
	// temporary directory is created under WorkDir and removed on Close.
	Dir string

	// WorkDir is the parent for the temporary store directory.
	// Default: os.TempDir()
	WorkDir string

	// Dirs lists additional directories to create in the store.
	// DataDir is always created.
	Dirs []string

	// Stdout receives normal-channel lines not held by a suppressing capture.
	Stdout LineSink

	// Stderr receives diagnostic-channel lines.
	Stderr LineSink

	// Logger is an optional logger for sandbox events.
	Logger Logger
}

// Validate checks that required fields are set.
func (c Config) Validate() error {
	if !c.Role.Valid() {
		return fmt.Errorf("%w: invalid role %q", ErrSandboxInit, c.Role)
	}
	if c.Entry == nil {
		return fmt.Errorf("%w: %s: entry point is required", ErrSandboxInit, c.Role)
	}
	return nil
}

// Sandbox is an isolated environment hosting one tool.
type Sandbox struct {
	role   Role
	entry  EntryPoint
	store  *Store
	router *Router
	stderr LineSink
	logger Logger

	mu     sync.Mutex
	closed bool
}

// New creates a sandbox, its store and its conventional directories.
func New(cfg Config) (*Sandbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store *Store
		err   error
	)
	if cfg.Dir != "" {
		store, err = OpenStore(cfg.Dir)
	} else {
		workDir := cfg.WorkDir
		if workDir == "" {
			workDir = os.TempDir()
		}
		store, err = openTempStore(workDir, "minachain-"+string(cfg.Role)+"-")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSandboxInit, cfg.Role, err)
	}

	for _, dir := range append([]string{DataDir}, cfg.Dirs...) {
		if err := store.MkdirAll(dir); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%w: %s: create %s: %v", ErrSandboxInit, cfg.Role, dir, err)
		}
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = discard
	}

	return &Sandbox{
		role:   cfg.Role,
		entry:  cfg.Entry,
		store:  store,
		router: NewRouter(cfg.Stdout),
		stderr: stderr,
		logger: cfg.Logger,
	}, nil
}

// Role returns the sandbox role.
func (s *Sandbox) Role() Role {
	return s.role
}

// Store returns the sandbox's file store.
func (s *Sandbox) Store() *Store {
	return s.store
}

// Capture begins capturing the normal output channel.
// See Router.Capture.
func (s *Sandbox) Capture(suppressLive bool) *Capture {
	return s.router.Capture(suppressLive)
}

// ReadArtifact returns the content at path.
// It returns ErrArtifactNotFound if path does not exist.
func (s *Sandbox) ReadArtifact(path string) ([]byte, error) {
	return s.store.ReadFile(path)
}

// WriteArtifact replaces or creates the content at path.
func (s *Sandbox) WriteArtifact(path string, data []byte) error {
	return s.store.WriteFile(path, data)
}

// HasArtifact reports whether path exists in the store.
func (s *Sandbox) HasArtifact(path string) bool {
	return s.store.Exists(path)
}

// Invoke runs the hosted tool with args and blocks until it completes.
//
// A non-zero exit status or entry-point failure is returned as an
// *InvocationError alongside the record. Calls on one sandbox are serialized.
// It returns ErrClosed once the sandbox is closed.
func (s *Sandbox) Invoke(ctx context.Context, args ...string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{Role: s.role, Args: append([]string(nil), args...)}, ErrClosed
	}

	rec := Record{
		ID:   uuid.NewString(),
		Role: s.role,
		Args: append([]string(nil), args...),
	}

	stdout := &lineWriter{emit: s.router.Emit}
	stderr := &lineWriter{emit: func(line string) {
		rec.Diagnostics = append(rec.Diagnostics, line)
		s.stderr(line)
	}}

	if s.logger != nil {
		s.logger.Info("invoking tool",
			"invocation", rec.ID,
			"role", s.role,
			"tool", s.role.Tool(),
			"args", rec.Args)
	}

	start := time.Now()
	code, err := s.entry.Main(ctx, &Invocation{
		Args:   rec.Args,
		Store:  s.store,
		Stdout: stdout,
		Stderr: stderr,
	})
	stdout.Flush()
	stderr.Flush()
	rec.Duration = time.Since(start)
	rec.ExitCode = code

	if err == nil && code == 0 {
		return rec, nil
	}

	if err != nil {
		rec.ExitCode = -1
	}
	invErr := &InvocationError{
		Role:        s.role,
		Args:        rec.Args,
		ExitCode:    rec.ExitCode,
		Diagnostics: rec.Diagnostics,
		Err:         err,
	}
	if s.logger != nil {
		s.logger.Error("tool failed",
			"invocation", rec.ID,
			"role", s.role,
			"exitCode", rec.ExitCode,
			"error", invErr)
	}
	return rec, invErr
}

// Close releases the sandbox's store and, if the entry point holds
// resources, the entry point.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if c, ok := s.entry.(interface{ Close(context.Context) error }); ok {
		err = c.Close(ctx)
	}
	return errors.Join(err, s.store.Close())
}
