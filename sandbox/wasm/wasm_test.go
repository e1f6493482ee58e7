package wasm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/jonwraymond/minachain/sandbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var minimalWasmModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// exitModule imports proc_exit and calls proc_exit(3) from _start.
var exitModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32)->(), ()->()
	0x01, 0x08, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00,
	// import wasi_snapshot_preview1.proc_exit
	0x02, 0x24, 0x01,
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', '_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x09, 'p', 'r', 'o', 'c', '_', 'e', 'x', 'i', 't',
	0x00, 0x00,
	// function
	0x03, 0x02, 0x01, 0x01,
	// export _start
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
	// code: i32.const 3; call 0; end
	0x0a, 0x08, 0x01, 0x06, 0x00, 0x41, 0x03, 0x10, 0x00, 0x0b,
}

// helloModule writes "OK\n" to fd 1 with fd_write.
var helloModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32 i32 i32 i32)->i32, ()->()
	0x01, 0x0c, 0x02, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00,
	// import wasi_snapshot_preview1.fd_write
	0x02, 0x23, 0x01,
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', '_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x08, 'f', 'd', '_', 'w', 'r', 'i', 't', 'e',
	0x00, 0x00,
	// function
	0x03, 0x02, 0x01, 0x01,
	// memory: 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// export memory, _start
	0x07, 0x13, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
	// code: fd_write(1, 0, 1, 20); drop; end
	0x0a, 0x0f, 0x01, 0x0d, 0x00,
	0x41, 0x01, 0x41, 0x00, 0x41, 0x01, 0x41, 0x14, 0x10, 0x00, 0x1a, 0x0b,
	// data at 0: iovec{ptr: 8, len: 3}, "OK\n"
	0x0b, 0x11, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x0b,
	0x08, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 'O', 'K', '\n',
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func newProgramSandbox(t *testing.T, rt *Runtime, payload []byte, stdout sandbox.LineSink) *sandbox.Sandbox {
	t.Helper()
	prog, err := rt.Load(context.Background(), "mina-sim", payload)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sb, err := sandbox.New(sandbox.Config{
		Role:   sandbox.RoleSimulator,
		Entry:  prog,
		Dir:    t.TempDir(),
		Stdout: stdout,
	})
	if err != nil {
		t.Fatalf("sandbox.New() error = %v", err)
	}
	t.Cleanup(func() { _ = sb.Close(context.Background()) })
	return sb
}

func TestRuntimeDefaults(t *testing.T) {
	rt := newTestRuntime(t)
	if want := uint32(DefaultMaxMemoryBytes / pageSize); rt.maxMemoryPages != want {
		t.Errorf("maxMemoryPages = %d, want %d", rt.maxMemoryPages, want)
	}
	if rt.enableClock {
		t.Error("enableClock = true, want false")
	}
}

func TestLoadRejectsNonWasm(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Load(context.Background(), "minac", []byte("#!/bin/sh\n"))
	if !errors.Is(err, ErrInvalidModule) {
		t.Errorf("Load() error = %v, want %v", err, ErrInvalidModule)
	}
}

func TestLoadRejectsCorruptModule(t *testing.T) {
	rt := newTestRuntime(t)
	corrupt := []byte{0x00, 0x61, 0x73, 0x6d, 0xff, 0x00, 0x00, 0x00}
	_, err := rt.Load(context.Background(), "minac", corrupt)
	if !errors.Is(err, ErrModuleCompilationFailed) {
		t.Errorf("Load() error = %v, want %v", err, ErrModuleCompilationFailed)
	}
}

func TestLoadAfterClose(t *testing.T) {
	rt, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := rt.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_, err = rt.Load(context.Background(), "minac", minimalWasmModule)
	if !errors.Is(err, ErrRuntimeClosed) {
		t.Errorf("Load() error = %v, want %v", err, ErrRuntimeClosed)
	}
}

func TestProgramWithoutStart(t *testing.T) {
	rt := newTestRuntime(t)
	sb := newProgramSandbox(t, rt, minimalWasmModule, nil)

	rec, err := sb.Invoke(context.Background(), "/data/out.elf")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if rec.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", rec.ExitCode)
	}
}

func TestProgramExitCode(t *testing.T) {
	rt := newTestRuntime(t)
	sb := newProgramSandbox(t, rt, exitModule, nil)

	for i := 0; i < 2; i++ {
		rec, err := sb.Invoke(context.Background())
		if !errors.Is(err, sandbox.ErrToolInvocation) {
			t.Fatalf("Invoke() #%d error = %v, want %v", i, err, sandbox.ErrToolInvocation)
		}
		if rec.ExitCode != 3 {
			t.Errorf("Invoke() #%d ExitCode = %d, want 3", i, rec.ExitCode)
		}
	}
}

func TestProgramStdout(t *testing.T) {
	rt := newTestRuntime(t)
	var lines []string
	sb := newProgramSandbox(t, rt, helloModule, func(line string) {
		lines = append(lines, line)
	})

	for i := 0; i < 2; i++ {
		if _, err := sb.Invoke(context.Background()); err != nil {
			t.Fatalf("Invoke() #%d error = %v", i, err)
		}
	}
	if diff := cmp.Diff([]string{"OK", "OK"}, lines); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramName(t *testing.T) {
	rt := newTestRuntime(t)
	prog, err := rt.Load(context.Background(), "mina-as", minimalWasmModule)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer prog.Close(context.Background())

	if prog.Name() != "mina-as" {
		t.Errorf("Name() = %q, want %q", prog.Name(), "mina-as")
	}
}

func TestClampUint32(t *testing.T) {
	if got := clampUint32(1 << 40); got != ^uint32(0) {
		t.Errorf("clampUint32(1<<40) = %d, want max", got)
	}
	if got := clampUint32(42); got != 42 {
		t.Errorf("clampUint32(42) = %d, want 42", got)
	}
}
