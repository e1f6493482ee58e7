package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonwraymond/minachain/sandbox"
)

// Bool returns a pointer to v, for the optional fields of CompileOptions.
func Bool(v bool) *bool {
	return &v
}

// CompileOptions configures Compile.
type CompileOptions struct {
	// Optimize passes -O to the compiler.
	Optimize bool

	// IncludeRuntime prepends the runtime library assembly to the output.
	// Default: true
	IncludeRuntime *bool

	// PreferLibrary passes --prefer-libc so calls resolve to the runtime
	// library. Independent of IncludeRuntime.
	// Default: true
	PreferLibrary *bool

	// SuppressLive keeps the compiler's assembly off the live output sink.
	// The assembly is still captured into the output artifact.
	SuppressLive bool
}

func (o CompileOptions) includeRuntime() bool {
	if o.IncludeRuntime == nil {
		return true
	}
	return *o.IncludeRuntime
}

func (o CompileOptions) preferLibrary() bool {
	if o.PreferLibrary == nil {
		return true
	}
	return *o.PreferLibrary
}

// args returns the compiler argument list for InputPath.
func (o CompileOptions) args() []string {
	args := []string{flagEmitAsm}
	if o.preferLibrary() {
		args = append(args, flagPreferLibc)
	}
	if o.Optimize {
		args = append(args, flagOptimize)
	}
	return append(args, InputPath)
}

// runtimeArgs is the compiler argument list that produces the runtime
// library assembly.
var runtimeArgs = []string{flagEmitAsm, flagNoStart, RuntimeSourcePath}

// AssembleOptions configures Assemble.
type AssembleOptions struct {
	// RawBinary asks the assembler for a flat binary instead of ELF.
	RawBinary bool
}

func (o AssembleOptions) args(asmPath string) []string {
	var args []string
	if o.RawBinary {
		args = append(args, flagRawBinary)
	}
	return append(args, asmPath, flagOutput, ELFPath)
}

// AnalyzeOptions configures Analyze. Each enabled option adds one analyzer
// flag; flags are always emitted in field order.
type AnalyzeOptions struct {
	OnlyText     bool
	Stats        bool
	JSON         bool
	StopAtEbreak bool
}

func (o AnalyzeOptions) args(target string) []string {
	var args []string
	if o.OnlyText {
		args = append(args, flagOnlyText)
	}
	if o.Stats {
		args = append(args, flagStats)
	}
	if o.JSON {
		args = append(args, flagJSON)
	}
	if o.StopAtEbreak {
		args = append(args, flagStopAtEbreak)
	}
	return append(args, target)
}

// SimOptions are simulator flags.
type SimOptions struct {
	// Trace prints each executed instruction.
	Trace bool

	// DumpRegisters prints the register file on exit.
	DumpRegisters bool

	// MaxSteps bounds the number of executed instructions.
	// Zero uses the simulator's default (1,000,000).
	MaxSteps uint64

	// MemoryBytes sets the guest memory size.
	// Zero uses the simulator's default (64MB).
	MemoryBytes uint64

	// Entry overrides the ELF entry point.
	Entry *uint64

	// Extra is appended verbatim after the structured flags.
	Extra []string
}

// Args renders the options as simulator arguments, excluding the binary path.
func (o SimOptions) Args() []string {
	var args []string
	if o.Trace {
		args = append(args, flagTrace)
	}
	if o.DumpRegisters {
		args = append(args, flagDumpRegs)
	}
	if o.MaxSteps > 0 {
		args = append(args, flagMaxSteps, strconv.FormatUint(o.MaxSteps, 10))
	}
	if o.MemoryBytes > 0 {
		args = append(args, flagMemory, strconv.FormatUint(o.MemoryBytes, 10))
	}
	if o.Entry != nil {
		args = append(args, flagEntry, strconv.FormatUint(*o.Entry, 16))
	}
	return append(args, o.Extra...)
}

// Options configures the composed Build and CompileAssembleRun operations.
type Options struct {
	Compile  CompileOptions
	Assemble AssembleOptions
	Sim      SimOptions
}

// Config configures a Pipeline built from existing sandboxes.
type Config struct {
	// Compiler, Assembler, Simulator and Analyzer are the stage sandboxes.
	// Required; each must have the matching role.
	Compiler  *sandbox.Sandbox
	Assembler *sandbox.Sandbox
	Simulator *sandbox.Sandbox
	Analyzer  *sandbox.Sandbox

	// RuntimeHeader and RuntimeSource, when set, are written into the
	// compiler sandbox at RuntimeHeaderPath and RuntimeSourcePath.
	RuntimeHeader []byte
	RuntimeSource []byte

	// Logger is an optional logger for pipeline events.
	Logger sandbox.Logger

	// Observer is notified of every stage transition.
	Observer StageObserver
}

// Validate checks that every sandbox is present with the expected role.
func (c *Config) Validate() error {
	var missing, mismatched []string
	check := func(field string, sb *sandbox.Sandbox, role sandbox.Role) {
		switch {
		case sb == nil:
			missing = append(missing, field)
		case sb.Role() != role:
			mismatched = append(mismatched, fmt.Sprintf("%s has role %s", field, sb.Role()))
		}
	}
	check("Compiler", c.Compiler, sandbox.RoleCompiler)
	check("Assembler", c.Assembler, sandbox.RoleAssembler)
	check("Simulator", c.Simulator, sandbox.RoleSimulator)
	check("Analyzer", c.Analyzer, sandbox.RoleAnalyzer)

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s",
			ErrConfiguration, strings.Join(missing, ", "))
	}
	if len(mismatched) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(mismatched, "; "))
	}
	return nil
}
