package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/minachain/sandbox"
)

// Pipeline sequences the four stage sandboxes.
//
// Contract:
// - Concurrency: safe for concurrent use; operations are serialized.
// - Errors: stage failures are *StageError; composed operations return
//   *AbortError wrapping the failing stage's error.
// - Ownership: a failed operation leaves earlier artifacts in place.
type Pipeline struct {
	compiler  *sandbox.Sandbox
	assembler *sandbox.Sandbox
	simulator *sandbox.Sandbox
	analyzer  *sandbox.Sandbox

	logger   sandbox.Logger
	observer StageObserver

	// closers release resources owned by the pipeline beyond its sandboxes.
	closers []func(context.Context) error

	mu         sync.Mutex
	runtimeAsm *string
}

// New creates a pipeline over existing sandboxes and writes any configured
// runtime library files into the compiler sandbox.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.RuntimeHeader != nil {
		if err := cfg.Compiler.WriteArtifact(RuntimeHeaderPath, cfg.RuntimeHeader); err != nil {
			return nil, fmt.Errorf("%w: write runtime header: %v", sandbox.ErrSandboxInit, err)
		}
	}
	if cfg.RuntimeSource != nil {
		if err := cfg.Compiler.WriteArtifact(RuntimeSourcePath, cfg.RuntimeSource); err != nil {
			return nil, fmt.Errorf("%w: write runtime source: %v", sandbox.ErrSandboxInit, err)
		}
	}

	return &Pipeline{
		compiler:  cfg.Compiler,
		assembler: cfg.Assembler,
		simulator: cfg.Simulator,
		analyzer:  cfg.Analyzer,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
	}, nil
}

// Sandbox returns the sandbox for role, or nil for an unknown role.
func (p *Pipeline) Sandbox(role sandbox.Role) *sandbox.Sandbox {
	switch role {
	case sandbox.RoleCompiler:
		return p.compiler
	case sandbox.RoleAssembler:
		return p.assembler
	case sandbox.RoleSimulator:
		return p.simulator
	case sandbox.RoleAnalyzer:
		return p.analyzer
	default:
		return nil
	}
}

// Compile writes source to InputPath in the compiler sandbox and compiles
// it to assembly at AsmPath, which it returns.
//
// When runtime inclusion is enabled the runtime library assembly is
// prepended. It is computed on first use, never shown live, and cached for
// the lifetime of the pipeline.
func (p *Pipeline) Compile(ctx context.Context, source string, opts CompileOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.track()
	t.enter(StageCompiling)
	asmPath, err := p.compile(ctx, source, opts)
	if err != nil {
		t.fail()
		return "", err
	}
	t.done()
	return asmPath, nil
}

// Assemble assembles asmPath, which must exist in the assembler sandbox,
// and returns ELFPath.
func (p *Pipeline) Assemble(ctx context.Context, asmPath string, opts AssembleOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.track()
	t.enter(StageAssembling)
	elfPath, err := p.assemble(ctx, asmPath, opts)
	if err != nil {
		t.fail()
		return "", err
	}
	t.done()
	return elfPath, nil
}

// Run executes elfPath in the simulator with extraArgs ahead of the path.
// The binary must already exist in the simulator sandbox; Run never stages.
// A non-zero exit status is returned together with a *StageError.
func (p *Pipeline) Run(ctx context.Context, elfPath string, extraArgs ...string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.track()
	t.enter(StageRunning)
	code, err := p.run(ctx, elfPath, extraArgs)
	if err != nil {
		t.fail()
		return code, err
	}
	t.done()
	return code, nil
}

// Analyze stages elfPath from the simulator sandbox to AnalyzePath in the
// analyzer sandbox and runs the analyzer on it.
func (p *Pipeline) Analyze(ctx context.Context, elfPath string, opts AnalyzeOptions) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.track()
	t.enter(StageAnalyzing)
	if err := sandbox.Stage(p.simulator, elfPath, p.analyzer, AnalyzePath); err != nil {
		t.fail()
		return 0, newStageError(StageAnalyzing, elfPath, err)
	}
	rec, err := p.analyzer.Invoke(ctx, opts.args(AnalyzePath)...)
	if err != nil {
		t.fail()
		return rec.ExitCode, newStageError(StageAnalyzing, AnalyzePath, err)
	}
	t.done()
	return rec.ExitCode, nil
}

// Build compiles source, assembles it and stages the binary into the
// simulator sandbox at ELFPath, which it returns.
func (p *Pipeline) Build(ctx context.Context, source string, opts Options) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	elfPath, err := p.sequence(p.track(), p.buildSteps(ctx, source, opts))
	p.logResult("build", start, err)
	if err != nil {
		return "", err
	}
	return elfPath, nil
}

// CompileAssembleRun runs the full pipeline: compile, stage the assembly,
// assemble, stage the binary and run it with opts.Sim.
//
// The first failing stage aborts the sequence with an *AbortError naming
// the stages that were skipped.
func (p *Pipeline) CompileAssembleRun(ctx context.Context, source string, opts Options) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	var code int
	steps := append(p.buildSteps(ctx, source, opts), step{
		stage: StageRunning,
		fn: func() (err error) {
			code, err = p.run(ctx, ELFPath, opts.Sim.Args())
			return err
		},
	})
	_, err := p.sequence(p.track(), steps)
	p.logResult("compile-assemble-run", start, err)
	return code, err
}

// LoadBinary writes a prebuilt binary into the simulator sandbox at
// /data/<name>.
func (p *Pipeline) LoadBinary(name string, data []byte) error {
	binPath, err := BinaryPath(name)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.simulator.WriteArtifact(binPath, data)
}

// RunBinary runs a binary previously written with LoadBinary.
func (p *Pipeline) RunBinary(ctx context.Context, name string, extraArgs ...string) (int, error) {
	binPath, err := BinaryPath(name)
	if err != nil {
		return 0, err
	}
	return p.Run(ctx, binPath, extraArgs...)
}

// Close closes the sandboxes and any resources opened with them.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, sb := range []*sandbox.Sandbox{p.compiler, p.assembler, p.simulator, p.analyzer} {
		errs = append(errs, sb.Close(ctx))
	}
	for _, c := range p.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}

type step struct {
	stage Stage
	fn    func() error
}

func (p *Pipeline) buildSteps(ctx context.Context, source string, opts Options) []step {
	return []step{
		{StageCompiling, func() error {
			_, err := p.compile(ctx, source, opts.Compile)
			return err
		}},
		{StageStagingAsm, func() error {
			return p.stage(StageStagingAsm, p.compiler, p.assembler, AsmPath)
		}},
		{StageAssembling, func() error {
			_, err := p.assemble(ctx, AsmPath, opts.Assemble)
			return err
		}},
		{StageStagingELF, func() error {
			return p.stage(StageStagingELF, p.assembler, p.simulator, ELFPath)
		}},
	}
}

// sequence runs steps in order and stops at the first failure.
// On success it returns ELFPath.
func (p *Pipeline) sequence(t *tracker, steps []step) (string, error) {
	for i, s := range steps {
		t.enter(s.stage)
		if err := s.fn(); err != nil {
			t.fail()
			skipped := make([]Stage, 0, len(steps)-i-1)
			for _, rest := range steps[i+1:] {
				skipped = append(skipped, rest.stage)
			}
			return "", &AbortError{Failed: s.stage, Skipped: skipped, Err: err}
		}
	}
	t.done()
	return ELFPath, nil
}

// compile compiles the user's source, then the runtime library when it is
// included.
func (p *Pipeline) compile(ctx context.Context, source string, opts CompileOptions) (string, error) {
	if err := p.compiler.WriteArtifact(InputPath, []byte(source)); err != nil {
		return "", newStageError(StageCompiling, InputPath, err)
	}

	asm, err := sandbox.WithCapture(p.compiler, opts.SuppressLive, func() error {
		_, err := p.compiler.Invoke(ctx, opts.args()...)
		return err
	})
	if err != nil {
		return "", newStageError(StageCompiling, InputPath, err)
	}

	if opts.includeRuntime() {
		runtimeAsm, err := p.runtimeAssembly(ctx)
		if err != nil {
			return "", err
		}
		asm = runtimeAsm + "\n" + asm
	}
	if err := p.compiler.WriteArtifact(AsmPath, []byte(asm)); err != nil {
		return "", newStageError(StageCompiling, AsmPath, err)
	}
	return AsmPath, nil
}

// runtimeAssembly returns the cached runtime library assembly, compiling it
// on the first call. Failures are not cached.
func (p *Pipeline) runtimeAssembly(ctx context.Context) (string, error) {
	if p.runtimeAsm != nil {
		return *p.runtimeAsm, nil
	}
	if !p.compiler.HasArtifact(RuntimeSourcePath) {
		return "", newStageError(StageCompiling, RuntimeSourcePath,
			fmt.Errorf("%w: %s", sandbox.ErrArtifactNotFound, RuntimeSourcePath))
	}

	asm, err := sandbox.WithCapture(p.compiler, true, func() error {
		_, err := p.compiler.Invoke(ctx, runtimeArgs...)
		return err
	})
	if err != nil {
		return "", newStageError(StageCompiling, RuntimeSourcePath, err)
	}

	p.runtimeAsm = &asm
	if p.logger != nil {
		p.logger.Info("runtime library compiled", "lines", strings.Count(asm, "\n"))
	}
	return asm, nil
}

func (p *Pipeline) assemble(ctx context.Context, asmPath string, opts AssembleOptions) (string, error) {
	if !p.assembler.HasArtifact(asmPath) {
		return "", newStageError(StageAssembling, asmPath,
			fmt.Errorf("%w: %s", sandbox.ErrArtifactNotFound, asmPath))
	}
	if _, err := p.assembler.Invoke(ctx, opts.args(asmPath)...); err != nil {
		return "", newStageError(StageAssembling, asmPath, err)
	}
	return ELFPath, nil
}

func (p *Pipeline) run(ctx context.Context, elfPath string, extraArgs []string) (int, error) {
	if !p.simulator.HasArtifact(elfPath) {
		return 0, newStageError(StageRunning, elfPath,
			fmt.Errorf("%w: %s", sandbox.ErrArtifactNotFound, elfPath))
	}
	args := append(append([]string(nil), extraArgs...), elfPath)
	rec, err := p.simulator.Invoke(ctx, args...)
	if err != nil {
		return rec.ExitCode, newStageError(StageRunning, elfPath, err)
	}
	return rec.ExitCode, nil
}

func (p *Pipeline) stage(stage Stage, src, dst *sandbox.Sandbox, artifact string) error {
	if err := sandbox.Stage(src, artifact, dst, artifact); err != nil {
		return newStageError(stage, artifact, err)
	}
	return nil
}

func (p *Pipeline) logResult(op string, start time.Time, err error) {
	if p.logger == nil {
		return
	}
	if err != nil {
		p.logger.Warn("pipeline aborted", "operation", op, "duration", time.Since(start), "error", err)
		return
	}
	p.logger.Info("pipeline finished", "operation", op, "duration", time.Since(start))
}

// BinaryPath maps a binary name to its path in the simulator sandbox,
// /data/<name>. Names containing path separators are rejected.
func BinaryPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBinaryName, name)
	}
	return path.Join(sandbox.DataDir, name), nil
}
