package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jonwraymond/minachain/sandbox"
)

// The fake toolchain understands just enough C to print characters:
// every putchar(N) and exit(N) call becomes "li a0, N" plus a call, the
// assembler turns those into "putc N" / "exit N" records behind a magic
// line, and the simulator replays the records.

var callRe = regexp.MustCompile(`(putchar|exit)\((\d+)\)`)

const (
	elfMagic = "\x7fELF"
	binMagic = "BIN"

	testRuntimeHeader = "int putchar(int c);\n"
	testRuntimeSource = "#include \"clib.h\"\nint putchar(int c) { return c; }\n"

	helloSource = "#include \"clib.h\"\nint main(){ putchar(79); putchar(75); putchar(10); return 0; }"
)

// runtimeAsmLines is what the fake compiler emits for the runtime source.
var runtimeAsmLines = []string{"putchar:", "  ecall", "  ret"}

// fakeCompilerLines returns the assembly lines the fake compiler emits for
// a user program.
func fakeCompilerLines(source string) []string {
	lines := []string{"main:"}
	for _, m := range callRe.FindAllStringSubmatch(source, -1) {
		lines = append(lines, "  li a0, "+m[2], "  call "+m[1])
	}
	if strings.Contains(source, "#bad-asm") {
		lines = append(lines, "  .bad")
	}
	return append(lines, "  li a0, 0", "  ret")
}

type fakeToolchain struct {
	mu    sync.Mutex
	calls map[sandbox.Role][][]string
}

func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{calls: make(map[sandbox.Role][][]string)}
}

func (f *fakeToolchain) record(role sandbox.Role, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[role] = append(f.calls[role], append([]string(nil), args...))
}

func (f *fakeToolchain) Calls(role sandbox.Role) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls[role])
}

// RuntimeCompiles counts compiler invocations against the runtime source.
func (f *fakeToolchain) RuntimeCompiles() int {
	n := 0
	for _, args := range f.Calls(sandbox.RoleCompiler) {
		if lastArg(args) == RuntimeSourcePath {
			n++
		}
	}
	return n
}

func (f *fakeToolchain) entry(role sandbox.Role) sandbox.EntryPoint {
	var fn func(*sandbox.Invocation) int
	switch role {
	case sandbox.RoleCompiler:
		fn = fakeCompile
	case sandbox.RoleAssembler:
		fn = fakeAssemble
	case sandbox.RoleSimulator:
		fn = fakeSimulate
	case sandbox.RoleAnalyzer:
		fn = fakeAnalyze
	}
	return sandbox.EntryFunc(func(_ context.Context, inv *sandbox.Invocation) (int, error) {
		f.record(role, inv.Args)
		return fn(inv), nil
	})
}

func lastArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

func fakeCompile(inv *sandbox.Invocation) int {
	src, err := inv.Store.ReadFile(lastArg(inv.Args))
	if err != nil {
		fmt.Fprintf(inv.Stderr, "minac: %v\n", err)
		return 1
	}
	if bytes.Contains(src, []byte("#error")) {
		fmt.Fprintln(inv.Stderr, "input.c:1: error: forced failure")
		return 1
	}
	lines := fakeCompilerLines(string(src))
	if lastArg(inv.Args) == RuntimeSourcePath {
		lines = runtimeAsmLines
	}
	for _, line := range lines {
		fmt.Fprintln(inv.Stdout, line)
	}
	return 0
}

func fakeAssemble(inv *sandbox.Invocation) int {
	args := inv.Args
	magic := elfMagic
	if len(args) > 0 && args[0] == "--bin" {
		magic = binMagic
		args = args[1:]
	}
	if len(args) != 3 || args[1] != "-o" {
		fmt.Fprintln(inv.Stderr, "usage: mina-as [--bin] input.s -o output")
		return 2
	}
	asm, err := inv.Store.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(inv.Stderr, "mina-as: %v\n", err)
		return 1
	}
	if bytes.Contains(asm, []byte(".bad")) {
		fmt.Fprintln(inv.Stderr, "mina-as: unknown directive .bad")
		return 1
	}

	var out strings.Builder
	out.WriteString(magic + "\n")
	lines := strings.Split(string(asm), "\n")
	for i := 0; i+1 < len(lines); i++ {
		n, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "li a0, ")
		if !ok {
			continue
		}
		switch strings.TrimSpace(lines[i+1]) {
		case "call putchar":
			fmt.Fprintf(&out, "putc %s\n", n)
		case "call exit":
			fmt.Fprintf(&out, "exit %s\n", n)
		}
	}
	if err := inv.Store.WriteFile(args[2], []byte(out.String())); err != nil {
		fmt.Fprintf(inv.Stderr, "mina-as: %v\n", err)
		return 1
	}
	return 0
}

func fakeSimulate(inv *sandbox.Invocation) int {
	data, err := inv.Store.ReadFile(lastArg(inv.Args))
	if err != nil {
		fmt.Fprintf(inv.Stderr, "mina-sim: %v\n", err)
		return 1
	}
	records := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if records[0] != elfMagic {
		fmt.Fprintln(inv.Stderr, "mina-sim: not an ELF file")
		return 1
	}
	if slices.Contains(inv.Args, "-t") {
		fmt.Fprintf(inv.Stderr, "trace: %d records\n", len(records)-1)
	}

	var out []byte
	defer func() { _, _ = inv.Stdout.Write(out) }()
	for _, rec := range records[1:] {
		if n, ok := strings.CutPrefix(rec, "putc "); ok {
			v, _ := strconv.Atoi(n)
			out = append(out, byte(v))
		}
		if n, ok := strings.CutPrefix(rec, "exit "); ok {
			v, _ := strconv.Atoi(n)
			return v
		}
	}
	return 0
}

func fakeAnalyze(inv *sandbox.Invocation) int {
	data, err := inv.Store.ReadFile(lastArg(inv.Args))
	if err != nil {
		fmt.Fprintf(inv.Stderr, "mina-elf-info: %v\n", err)
		return 1
	}
	fmt.Fprintf(inv.Stdout, "flags: %s\n", strings.Join(inv.Args[:len(inv.Args)-1], " "))
	fmt.Fprintf(inv.Stdout, "size: %d\n", len(data))
	return 0
}

// lineRecorder is a LineSink that remembers every line.
type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) sink(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.lines)
}

type transition struct {
	From, To Stage
}

type harness struct {
	p           *Pipeline
	tools       *fakeToolchain
	stdout      map[sandbox.Role]*lineRecorder
	stderr      *lineRecorder
	transitions []transition
}

func (h *harness) sandbox(role sandbox.Role) *sandbox.Sandbox {
	return h.p.Sandbox(role)
}

func (h *harness) resetTransitions() {
	h.transitions = nil
}

type harnessOption func(*Config)

func withoutRuntime() harnessOption {
	return func(cfg *Config) {
		cfg.RuntimeHeader = nil
		cfg.RuntimeSource = nil
	}
}

func withRuntimeSource(src string) harnessOption {
	return func(cfg *Config) {
		cfg.RuntimeSource = []byte(src)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		tools:  newFakeToolchain(),
		stdout: make(map[sandbox.Role]*lineRecorder),
		stderr: &lineRecorder{},
	}

	sandboxes := make(map[sandbox.Role]*sandbox.Sandbox)
	for _, role := range sandbox.Roles {
		var dirs []string
		if role == sandbox.RoleCompiler {
			dirs = compilerDirs
		}
		rec := &lineRecorder{}
		sb, err := sandbox.New(sandbox.Config{
			Role:   role,
			Entry:  h.tools.entry(role),
			Dir:    t.TempDir(),
			Dirs:   dirs,
			Stdout: rec.sink,
			Stderr: h.stderr.sink,
		})
		if err != nil {
			t.Fatalf("sandbox.New(%s) error = %v", role, err)
		}
		h.stdout[role] = rec
		sandboxes[role] = sb
	}

	cfg := Config{
		Compiler:      sandboxes[sandbox.RoleCompiler],
		Assembler:     sandboxes[sandbox.RoleAssembler],
		Simulator:     sandboxes[sandbox.RoleSimulator],
		Analyzer:      sandboxes[sandbox.RoleAnalyzer],
		RuntimeHeader: []byte(testRuntimeHeader),
		RuntimeSource: []byte(testRuntimeSource),
		Observer: func(from, to Stage) {
			h.transitions = append(h.transitions, transition{from, to})
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	h.p = p
	return h
}
