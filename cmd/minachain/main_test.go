package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/minachain/config"
	"github.com/jonwraymond/minachain/pipeline"
	"github.com/jonwraymond/minachain/sandbox"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{config.EnvPayloadDir, config.EnvWorkDir, config.EnvLogLevel} {
		t.Setenv(key, "")
	}
	var stdout, stderr bytes.Buffer
	root := newRootCmd(newApp(&stdout, &stderr))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestTemplatesCmd(t *testing.T) {
	out, err := execute(t, "templates")
	if err != nil {
		t.Fatalf("templates error = %v", err)
	}
	for _, tmpl := range pipeline.Templates {
		if !strings.Contains(out, tmpl.Name) || !strings.Contains(out, tmpl.Label) {
			t.Errorf("templates output = %q, missing %s", out, tmpl.Name)
		}
	}

	out, err = execute(t, "templates", "--show", "hello")
	if err != nil {
		t.Fatalf("templates --show error = %v", err)
	}
	if !strings.Contains(out, "putchar(79)") {
		t.Errorf("templates --show output = %q, want the hello source", out)
	}

	if _, err := execute(t, "templates", "--show", "missing"); err == nil {
		t.Error("templates --show missing error = nil")
	}
}

func TestToolsCmd(t *testing.T) {
	out, err := execute(t, "tools")
	if err != nil {
		t.Fatalf("tools error = %v", err)
	}
	for _, id := range []string{"minachain:compile", "minachain:build", "minachain:run", "minachain:analyze", "minachain:compile_assemble_run"} {
		if !strings.Contains(out, id) {
			t.Errorf("tools output = %q, missing %s", out, id)
		}
	}

	out, err = execute(t, "tools", "simulator")
	if err != nil {
		t.Fatalf("tools simulator error = %v", err)
	}
	if !strings.Contains(out, "minachain:run") {
		t.Errorf("tools simulator output = %q, want minachain:run", out)
	}
}

func TestConfigCmd(t *testing.T) {
	out, err := execute(t, "config", "show", "--payload-dir", "/opt/payloads")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "dir: /opt/payloads") {
		t.Errorf("config show output = %q, want the payload dir override", out)
	}

	path := filepath.Join(t.TempDir(), "minachain.yaml")
	if _, err := execute(t, "config", "init", path, "--log-level", "debug"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("saved Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "templates", "--log-level", "verbose")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("error = %v, want %v", err, config.ErrInvalidConfig)
	}
}

func TestPipelineCmd_MissingPayloads(t *testing.T) {
	_, err := execute(t, "pipeline", "--template", "hello", "--payload-dir", t.TempDir())
	if !errors.Is(err, sandbox.ErrSandboxInit) {
		t.Errorf("error = %v, want %v", err, sandbox.ErrSandboxInit)
	}
}

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prog.c")
	if err := os.WriteFile(file, []byte("int main(){return 0;}"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := newApp(&bytes.Buffer{}, &bytes.Buffer{})
	a.stdin = strings.NewReader("int main(){return 1;}")

	tests := []struct {
		name     string
		args     []string
		template string
		want     string
		wantErr  bool
	}{
		{name: "file", args: []string{file}, want: "int main(){return 0;}"},
		{name: "stdin", args: []string{"-"}, want: "int main(){return 1;}"},
		{name: "template", template: "hello", want: pipeline.Templates[0].Source},
		{name: "both", args: []string{file}, template: "hello", wantErr: true},
		{name: "neither", wantErr: true},
		{name: "unknown template", template: "nope", wantErr: true},
		{name: "missing file", args: []string{filepath.Join(dir, "absent.c")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.readSource(tt.args, tt.template)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readSource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	a := newApp(&out, &bytes.Buffer{})
	a.console(sandbox.StreamStdout)("OK")
	a.console(sandbox.StreamStderr)("warning")
	if got, want := out.String(), "[stdout] OK\n[stderr] warning\n"; got != want {
		t.Errorf("console output = %q, want %q", got, want)
	}
}

func TestCompileFlags(t *testing.T) {
	var cf compileFlags
	cmd := &cobra.Command{}
	cf.register(cmd, false)
	if err := cmd.ParseFlags([]string{"-O", "--runtime=false"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Compile.PreferLibrary = false
	got := cf.options(cmd, cfg)
	want := pipeline.CompileOptions{
		Optimize:       true,
		IncludeRuntime: pipeline.Bool(false),
		PreferLibrary:  pipeline.Bool(false),
		SuppressLive:   true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("options() mismatch (-want +got):\n%s", diff)
	}
}

func TestSimFlags(t *testing.T) {
	var sf simFlags
	cmd := &cobra.Command{}
	sf.register(cmd)
	if err := cmd.ParseFlags([]string{"--trace", "--max-steps", "100", "--entry", "0x80000000"}); err != nil {
		t.Fatal(err)
	}

	got, err := sf.options(cmd, config.DefaultConfig(), []string{"a1"})
	if err != nil {
		t.Fatalf("options() error = %v", err)
	}
	want := []string{"-t", "-s", "100", "-e", "80000000", "a1"}
	if diff := cmp.Diff(want, got.Args()); diff != "" {
		t.Errorf("Args() mismatch (-want +got):\n%s", diff)
	}

	sf.entry = "zz"
	if _, err := sf.options(cmd, config.DefaultConfig(), nil); err == nil {
		t.Error("options() with invalid entry error = nil")
	}
}

func TestExitStatus(t *testing.T) {
	if got := exitStatus(nil); got != 0 {
		t.Errorf("exitStatus(nil) = %d, want 0", got)
	}
	if got := exitStatus(exitCode(42)); got != 42 {
		t.Errorf("exitStatus(exit 42) = %d, want 42", got)
	}
	if exitCode(0) != nil {
		t.Error("exitCode(0) != nil")
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "program exit passes through",
			err: &pipeline.AbortError{
				Failed: pipeline.StageRunning,
				Err: &pipeline.StageError{
					Stage:    pipeline.StageRunning,
					Path:     pipeline.ELFPath,
					ExitCode: 7,
					Err:      &sandbox.InvocationError{Role: sandbox.RoleSimulator, ExitCode: 7},
				},
			},
			want: 7,
		},
		{
			name: "bare running stage error",
			err:  &pipeline.StageError{Stage: pipeline.StageRunning, ExitCode: 3, Err: errors.New("exit status 3")},
			want: 3,
		},
		{
			name: "running stage without a program exit",
			err: &pipeline.StageError{
				Stage: pipeline.StageRunning,
				Err:   sandbox.ErrArtifactNotFound,
			},
			want: 1,
		},
		{
			name: "compiler exit is not passed through",
			err: &pipeline.AbortError{
				Failed: pipeline.StageCompiling,
				Err:    &pipeline.StageError{Stage: pipeline.StageCompiling, ExitCode: 2, Err: errors.New("exit status 2")},
			},
			want: 1,
		},
		{name: "other error", err: errors.New("boom"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(tt.err); got != tt.want {
				t.Errorf("exitStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
