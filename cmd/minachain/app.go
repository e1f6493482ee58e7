package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/jonwraymond/minachain/config"
	"github.com/jonwraymond/minachain/logging"
	"github.com/jonwraymond/minachain/pipeline"
	"github.com/jonwraymond/minachain/sandbox"
)

// app holds the state shared by all commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	payloadDir string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger

	mu sync.Mutex // serializes console writes
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdin: os.Stdin, stdout: stdout, stderr: stderr}
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.payloadDir != "" {
		cfg.Payloads.Dir = a.payloadDir
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, _, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Journal: cfg.Logging.Journal,
		Writer:  a.stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// console returns a sink printing tagged lines, e.g. "[stdout] OK".
func (a *app) console(stream sandbox.Stream) sandbox.LineSink {
	return func(text string) {
		a.mu.Lock()
		defer a.mu.Unlock()
		fmt.Fprintln(a.stdout, sandbox.Line{Stream: stream, Text: text})
	}
}

// open starts a pipeline printing tool output to the console.
func (a *app) open(ctx context.Context) (*pipeline.Pipeline, error) {
	return a.openWith(ctx, a.console(sandbox.StreamStdout), a.console(sandbox.StreamStderr))
}

func (a *app) openWith(ctx context.Context, stdout, stderr sandbox.LineSink) (*pipeline.Pipeline, error) {
	opts := a.cfg.OpenOptions()
	opts.Stdout = stdout
	opts.Stderr = stderr
	opts.Logger = a.logger
	opts.Observer = func(from, to pipeline.Stage) {
		a.logger.Debug("stage transition", "from", from, "to", to)
	}
	return pipeline.Open(ctx, opts)
}

// withPipeline opens a pipeline, runs fn and closes the pipeline.
func (a *app) withPipeline(ctx context.Context, fn func(*pipeline.Pipeline) error) (err error) {
	p, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(p)
}

// readSource returns the program text from the file argument, standard
// input ("-") or a built-in template.
func (a *app) readSource(args []string, template string) (string, error) {
	switch {
	case template != "" && len(args) > 0:
		return "", fmt.Errorf("give a source file or --template, not both")
	case template != "":
		t, ok := pipeline.LookupTemplate(template)
		if !ok {
			return "", fmt.Errorf("unknown template %q", template)
		}
		return t.Source, nil
	case len(args) == 0:
		return "", fmt.Errorf("a source file or --template is required")
	case args[0] == "-":
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// saveArtifact copies an artifact out of a sandbox to a host file.
func saveArtifact(sb *sandbox.Sandbox, path, dst string) error {
	data, err := sb.ReadArtifact(path)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
