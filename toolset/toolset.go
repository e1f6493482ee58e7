package toolset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/minachain/pipeline"
	"github.com/jonwraymond/minachain/sandbox"
)

// Namespace is the namespace of every tool in the set.
const Namespace = "minachain"

// Common errors for tool execution.
var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMissingPipeline = errors.New("pipeline is required")
)

// Pipeline is the subset of *pipeline.Pipeline the tools call.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: stage failures should be *pipeline.StageError or *pipeline.AbortError.
type Pipeline interface {
	Compile(ctx context.Context, source string, opts pipeline.CompileOptions) (string, error)
	Build(ctx context.Context, source string, opts pipeline.Options) (string, error)
	Run(ctx context.Context, elfPath string, extraArgs ...string) (int, error)
	Analyze(ctx context.Context, elfPath string, opts pipeline.AnalyzeOptions) (int, error)
	CompileAssembleRun(ctx context.Context, source string, opts pipeline.Options) (int, error)
}

var _ Pipeline = (*pipeline.Pipeline)(nil)

// HandlerFunc executes one tool call.
type HandlerFunc func(ctx context.Context, args map[string]any) (Result, error)

// ToolDef defines a tool with its handler.
type ToolDef struct {
	Name        string
	Title       string
	Description string
	InputSchema map[string]any
	Annotations *mcp.ToolAnnotations
	Tags        []string
	Summary     string
	Examples    []tooldoc.ToolExample
	Handler     HandlerFunc
}

// Result is the outcome of one tool call.
type Result struct {
	// Tool is the tool name.
	Tool string `json:"tool"`

	// Path is the produced artifact, for compile and build.
	Path string `json:"path,omitempty"`

	// ExitCode is the tool's exit status, for run and analyze.
	ExitCode int `json:"exitCode"`

	// Output holds the lines the sandboxes emitted during the call.
	Output []sandbox.Line `json:"output"`

	// Error describes the failure, if any.
	Error string `json:"error,omitempty"`

	// Duration is the wall time of the call.
	Duration time.Duration `json:"duration"`
}

// Config configures a Toolset.
type Config struct {
	// Pipeline runs the toolchain.
	// Required.
	Pipeline Pipeline

	// Transcript collects the pipeline's output lines. When set, each
	// Result carries the lines emitted during its call.
	Transcript *sandbox.Transcript

	// Logger is an optional logger for tool calls.
	Logger sandbox.Logger
}

// Toolset exposes the pipeline operations as tools.
//
// Contract:
// - Concurrency: safe for concurrent use; calls are serialized so each
//   Result's output belongs to that call only.
type Toolset struct {
	defs       map[string]ToolDef
	transcript *sandbox.Transcript
	logger     sandbox.Logger

	mu sync.Mutex
}

// New creates the tool set over cfg.Pipeline.
func New(cfg Config) (*Toolset, error) {
	if cfg.Pipeline == nil {
		return nil, ErrMissingPipeline
	}
	ts := &Toolset{
		defs:       make(map[string]ToolDef),
		transcript: cfg.Transcript,
		logger:     cfg.Logger,
	}
	for _, def := range definitions(cfg.Pipeline) {
		ts.defs[def.Name] = def
	}
	return ts, nil
}

// Catalog returns a tool set for listing and search without a pipeline.
// Every call to Execute fails with ErrMissingPipeline.
func Catalog() *Toolset {
	ts, _ := New(Config{Pipeline: unavailable{}})
	return ts
}

// unavailable is the Pipeline behind Catalog.
type unavailable struct{}

func (unavailable) Compile(context.Context, string, pipeline.CompileOptions) (string, error) {
	return "", ErrMissingPipeline
}

func (unavailable) Build(context.Context, string, pipeline.Options) (string, error) {
	return "", ErrMissingPipeline
}

func (unavailable) Run(context.Context, string, ...string) (int, error) {
	return 0, ErrMissingPipeline
}

func (unavailable) Analyze(context.Context, string, pipeline.AnalyzeOptions) (int, error) {
	return 0, ErrMissingPipeline
}

func (unavailable) CompileAssembleRun(context.Context, string, pipeline.Options) (int, error) {
	return 0, ErrMissingPipeline
}

// ToolID returns the namespaced ID of a tool, e.g. "minachain:compile".
func ToolID(name string) string {
	return Namespace + ":" + name
}

// Defs returns the tool definitions sorted by name.
func (ts *Toolset) Defs() []ToolDef {
	out := make([]ToolDef, 0, len(ts.defs))
	for _, def := range ts.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListTools returns the tools sorted by name.
func (ts *Toolset) ListTools() []model.Tool {
	defs := ts.Defs()
	out := make([]model.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Tool())
	}
	return out
}

// Tool returns the model tool for def.
func (def ToolDef) Tool() model.Tool {
	return model.Tool{
		Tool: mcp.Tool{
			Name:        def.Name,
			Title:       def.Title,
			Description: def.Description,
			InputSchema: def.InputSchema,
			Annotations: def.Annotations,
		},
		Namespace: Namespace,
		Tags:      model.NormalizeTags(def.Tags),
	}
}

// Execute runs the named tool. name may be a bare tool name or a
// namespaced ID. The Result is populated on failure too.
func (ts *Toolset) Execute(ctx context.Context, name string, args map[string]any) (Result, error) {
	if ns, tool, err := model.ParseToolID(name); err == nil && ns == Namespace {
		name = tool
	}
	def, ok := ts.defs[name]
	if !ok || def.Handler == nil {
		return Result{Tool: name}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.transcript != nil {
		ts.transcript.Drain()
	}
	start := time.Now()
	res, err := def.Handler(ctx, args)
	res.Tool = name
	res.Duration = time.Since(start)
	if ts.transcript != nil {
		res.Output = ts.transcript.Drain()
	}

	if err != nil {
		res.Error = err.Error()
		if res.ExitCode == 0 {
			res.ExitCode = exitCode(err)
		}
		if ts.logger != nil {
			ts.logger.Warn("tool call failed", "tool", name, "error", err)
		}
		return res, err
	}
	if ts.logger != nil {
		ts.logger.Info("tool call finished", "tool", name, "duration", res.Duration)
	}
	return res, nil
}
