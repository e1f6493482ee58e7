package wasm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"

	"github.com/jonwraymond/minachain/sandbox"
)

// Program is a compiled tool. It implements sandbox.EntryPoint by running
// the module's _start function once per invocation.
type Program struct {
	name     string
	compiled wazero.CompiledModule
	runtime  *Runtime
}

// Name returns the program name passed as argv[0].
func (p *Program) Name() string {
	return p.name
}

// Main instantiates the module with inv's arguments and output channels and
// the sandbox store mounted at "/". It returns the WASI exit code.
func (p *Program) Main(ctx context.Context, inv *sandbox.Invocation) (int, error) {
	cfg := p.moduleConfig(inv)

	start := time.Now()
	mod, err := p.runtime.runtime.InstantiateModule(ctx, p.compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}

	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return int(exitErr.ExitCode()), nil
		}
		if p.runtime.logger != nil {
			p.runtime.logger.Error("wasm module trapped",
				"module", p.name,
				"duration", time.Since(start),
				"error", err)
		}
		return -1, fmt.Errorf("%w: %s: %v", ErrModuleExecutionFailed, p.name, err)
	}
	return 0, nil
}

// moduleConfig builds the per-invocation module configuration.
func (p *Program) moduleConfig(inv *sandbox.Invocation) wazero.ModuleConfig {
	args := append([]string{p.name}, inv.Args...)

	cfg := wazero.NewModuleConfig().
		// Empty name allows the same compiled module to be instantiated
		// again on the next invocation.
		WithName("").
		WithArgs(args...).
		WithStdout(inv.Stdout).
		WithStderr(inv.Stderr).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(inv.Store.Dir(), "/"))

	if p.runtime.enableClock {
		cfg = cfg.WithSysWalltime().WithSysNanotime()
	}
	return cfg
}

// Close releases the compiled module.
func (p *Program) Close(ctx context.Context) error {
	return p.compiled.Close(ctx)
}
