package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/minachain/sandbox"
	"github.com/jonwraymond/minachain/sandbox/wasm"
)

// PayloadLoader fetches tool payloads and runtime library files by name.
//
// Contract:
// - Concurrency: Load is called concurrently and must be safe for it.
// - Errors: a missing payload is an error; there is no fallback payload.
type PayloadLoader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// FSLoader loads payloads from a file system.
type FSLoader struct {
	FS fs.FS
}

// DirLoader returns an FSLoader rooted at dir.
func DirLoader(dir string) FSLoader {
	return FSLoader{FS: os.DirFS(dir)}
}

// Load reads name from the file system.
func (l FSLoader) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(l.FS, name)
}

// Default payload file names.
const (
	DefaultRuntimeHeader = "clib.h"
	DefaultRuntimeSource = "clib.c"
)

// DefaultPayloadName returns the payload file name for role, e.g. "minac.wasm".
func DefaultPayloadName(role sandbox.Role) string {
	return role.Tool() + ".wasm"
}

// OpenOptions configures Open.
type OpenOptions struct {
	// Loader fetches payloads.
	// Required.
	Loader PayloadLoader

	// Payloads overrides the payload file name per role.
	// Default: DefaultPayloadName(role)
	Payloads map[sandbox.Role]string

	// RuntimeHeader is the runtime library header file name.
	// Default: DefaultRuntimeHeader
	RuntimeHeader string

	// RuntimeSource is the runtime library source file name.
	// Default: DefaultRuntimeSource
	RuntimeSource string

	// WorkDir is the parent directory for sandbox stores.
	// Default: os.TempDir()
	WorkDir string

	// WASM configures the shared wasm runtime.
	WASM wasm.Config

	// Stdout and Stderr receive every sandbox's output lines.
	Stdout sandbox.LineSink
	Stderr sandbox.LineSink

	// Logger is an optional logger shared by all components.
	Logger sandbox.Logger

	// Observer is notified of every stage transition.
	Observer StageObserver
}

func (o *OpenOptions) applyDefaults() {
	if o.RuntimeHeader == "" {
		o.RuntimeHeader = DefaultRuntimeHeader
	}
	if o.RuntimeSource == "" {
		o.RuntimeSource = DefaultRuntimeSource
	}
	if o.WASM.Logger == nil && o.Logger != nil {
		o.WASM.Logger = o.Logger
	}
}

func (o *OpenOptions) payloadName(role sandbox.Role) string {
	if name, ok := o.Payloads[role]; ok && name != "" {
		return name
	}
	return DefaultPayloadName(role)
}

// Open loads the four tool payloads and the runtime library concurrently,
// creates one sandbox per role and returns a ready pipeline.
//
// Any load or setup failure closes what was created and returns an error
// matching sandbox.ErrSandboxInit.
func Open(ctx context.Context, opts OpenOptions) (*Pipeline, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("%w: payload loader is required", sandbox.ErrSandboxInit)
	}
	opts.applyDefaults()

	rt, err := wasm.New(ctx, opts.WASM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sandbox.ErrSandboxInit, err)
	}

	programs := make([]*wasm.Program, len(sandbox.Roles))
	var header, source []byte

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range sandbox.Roles {
		name := opts.payloadName(role)
		g.Go(func() error {
			payload, err := opts.Loader.Load(gctx, name)
			if err != nil {
				return fmt.Errorf("%s: load %s: %w", role, name, err)
			}
			prog, err := rt.Load(gctx, role.Tool(), payload)
			if err != nil {
				return fmt.Errorf("%s: %w", role, err)
			}
			programs[i] = prog
			return nil
		})
	}
	g.Go(func() (err error) {
		header, err = opts.Loader.Load(gctx, opts.RuntimeHeader)
		if err != nil {
			return fmt.Errorf("load %s: %w", opts.RuntimeHeader, err)
		}
		return nil
	})
	g.Go(func() (err error) {
		source, err = opts.Loader.Load(gctx, opts.RuntimeSource)
		if err != nil {
			return fmt.Errorf("load %s: %w", opts.RuntimeSource, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", sandbox.ErrSandboxInit, err), rt.Close(ctx))
	}

	sandboxes := make([]*sandbox.Sandbox, 0, len(sandbox.Roles))
	cleanup := func() error {
		var errs []error
		for _, sb := range sandboxes {
			errs = append(errs, sb.Close(ctx))
		}
		return errors.Join(append(errs, rt.Close(ctx))...)
	}

	for i, role := range sandbox.Roles {
		var dirs []string
		if role == sandbox.RoleCompiler {
			dirs = compilerDirs
		}
		sb, err := sandbox.New(sandbox.Config{
			Role:    role,
			Entry:   programs[i],
			WorkDir: opts.WorkDir,
			Dirs:    dirs,
			Stdout:  opts.Stdout,
			Stderr:  opts.Stderr,
			Logger:  opts.Logger,
		})
		if err != nil {
			return nil, errors.Join(err, cleanup())
		}
		sandboxes = append(sandboxes, sb)
	}

	p, err := New(Config{
		Compiler:      sandboxes[0],
		Assembler:     sandboxes[1],
		Simulator:     sandboxes[2],
		Analyzer:      sandboxes[3],
		RuntimeHeader: header,
		RuntimeSource: source,
		Logger:        opts.Logger,
		Observer:      opts.Observer,
	})
	if err != nil {
		return nil, errors.Join(err, cleanup())
	}
	p.closers = append(p.closers, rt.Close)

	if opts.Logger != nil {
		opts.Logger.Info("pipeline ready", "workDir", opts.WorkDir)
	}
	return p, nil
}
