// Package wasm provides a sandbox entry point that executes WASI modules.
// Provides strong in-process isolation; each invocation gets a fresh module
// instance whose filesystem root is the sandbox's store.
package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/jonwraymond/minachain/sandbox"
)

// Errors for WASM operations.
var (
	// ErrRuntimeNotAvailable is returned when the WASM runtime cannot start.
	ErrRuntimeNotAvailable = errors.New("wasm runtime not available")

	// ErrInvalidModule is returned when a payload is not a WASM binary.
	ErrInvalidModule = errors.New("invalid wasm module")

	// ErrModuleCompilationFailed is returned when WASM module compilation fails.
	ErrModuleCompilationFailed = errors.New("wasm module compilation failed")

	// ErrModuleExecutionFailed is returned when a module traps or cannot be
	// instantiated.
	ErrModuleExecutionFailed = errors.New("wasm module execution failed")

	// ErrRuntimeClosed is returned when loading into a closed runtime.
	ErrRuntimeClosed = errors.New("wasm runtime closed")
)

// wasmMagic is the header every WASM binary starts with.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

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

// Config configures a WASM runtime.
type Config struct {
	// MaxMemoryBytes caps the linear memory of each module instance.
	// Rounded down to 64KB pages.
	// Default: 256MB (the simulator allocates 64MB of guest memory)
	MaxMemoryBytes int64

	// EnableClock exposes the host wall and monotonic clocks to modules.
	// When false, modules see wazero's deterministic fake clocks.
	// Default: false
	EnableClock bool

	// Logger is an optional logger for runtime events.
	Logger Logger
}

// DefaultMaxMemoryBytes is the default per-instance memory cap.
const DefaultMaxMemoryBytes = 256 << 20

const pageSize = 64 * 1024

// Runtime compiles tool payloads once and instantiates them per invocation.
// Create once and share across all sandboxes.
type Runtime struct {
	runtime        wazero.Runtime
	maxMemoryPages uint32
	enableClock    bool
	logger         Logger

	mu     sync.Mutex
	closed bool
}

// New creates a WASM runtime with WASI preview1 available to modules.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	maxMemoryBytes := cfg.MaxMemoryBytes
	if maxMemoryBytes <= 0 {
		maxMemoryBytes = DefaultMaxMemoryBytes
	}
	// #nosec G115 -- maxMemoryBytes is positive.
	pages := clampUint32(uint64(maxMemoryBytes / pageSize))
	if pages == 0 {
		pages = 1
	}

	rt := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithMemoryLimitPages(pages),
	)

	// Instantiate WASI preview1 (provides fd_write, args_get, path_open, etc.)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrRuntimeNotAvailable, err)
	}

	return &Runtime{
		runtime:        rt,
		maxMemoryPages: pages,
		enableClock:    cfg.EnableClock,
		logger:         cfg.Logger,
	}, nil
}

// Load compiles payload into a Program that runs as name (its argv[0]).
// Safe for concurrent use.
func (r *Runtime) Load(ctx context.Context, name string, payload []byte) (*Program, error) {
	if !bytes.HasPrefix(payload, wasmMagic) {
		return nil, fmt.Errorf("%w: %s: missing wasm header", ErrInvalidModule, name)
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRuntimeClosed
	}

	compiled, err := r.runtime.CompileModule(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModuleCompilationFailed, name, err)
	}

	if r.logger != nil {
		r.logger.Info("compiled wasm module",
			"module", name,
			"bytes", len(payload),
			"memoryPages", r.maxMemoryPages)
	}

	return &Program{name: name, compiled: compiled, runtime: r}, nil
}

// Close releases the runtime and every module compiled by it.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.runtime.Close(ctx)
}

func clampUint32(value uint64) uint32 {
	if value > math.MaxUint32 {
		return math.MaxUint32
	}
	// #nosec G115 -- value bounded to MaxUint32.
	return uint32(value)
}

var _ sandbox.EntryPoint = (*Program)(nil)
