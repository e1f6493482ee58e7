package pipeline

// Artifact locations inside the sandboxes. Every stage reads and writes
// fixed paths so staging never needs path negotiation.
const (
	// InputPath receives the C source in the compiler sandbox.
	InputPath = "/data/input.c"

	// AsmPath holds the assembly output. It exists in the compiler sandbox
	// after Compile and in the assembler sandbox after staging.
	AsmPath = "/data/out.s"

	// ELFPath holds the assembled binary. It exists in the assembler sandbox
	// after Assemble and in the simulator sandbox after staging.
	ELFPath = "/data/out.elf"

	// AnalyzePath is where Analyze stages the binary in the analyzer sandbox.
	AnalyzePath = "/data/analyze.elf"

	// RuntimeHeaderPath is the runtime library header in the compiler sandbox.
	RuntimeHeaderPath = "/clib/include/clib.h"

	// RuntimeSourcePath is the runtime library source in the compiler sandbox.
	RuntimeSourcePath = "/clib/src/clib.c"
)

// compilerDirs are created in the compiler sandbox in addition to /data.
var compilerDirs = []string{"/clib/include", "/clib/src"}

// Tool flags.
const (
	flagEmitAsm      = "--emit-asm"
	flagPreferLibc   = "--prefer-libc"
	flagOptimize     = "-O"
	flagNoStart      = "--no-start"
	flagOutput       = "-o"
	flagRawBinary    = "--bin"
	flagOnlyText     = "--only-text"
	flagStats        = "--stats"
	flagJSON         = "--json"
	flagStopAtEbreak = "--stop-at-ebreak"
	flagTrace        = "-t"
	flagDumpRegs     = "-r"
	flagMaxSteps     = "-s"
	flagMemory       = "-m"
	flagEntry        = "-e"
)
