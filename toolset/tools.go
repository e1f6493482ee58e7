package toolset

import (
	"context"
	"errors"
	"maps"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/minachain/pipeline"
)

// Tool names.
const (
	ToolCompile            = "compile"
	ToolBuild              = "build"
	ToolRun                = "run"
	ToolAnalyze            = "analyze"
	ToolCompileAssembleRun = "compile_assemble_run"
)

func definitions(p Pipeline) []ToolDef {
	return []ToolDef{
		{
			Name:        ToolCompile,
			Title:       "Compile C",
			Description: "Compiles C source to RISC-V assembly, prepending the runtime library unless disabled. Returns the assembly path in the compiler sandbox.",
			Summary:     "C to assembly",
			Examples: []tooldoc.ToolExample{
				{
					ID:         "optimized",
					Title:      "Compile without the runtime library",
					Args:       map[string]any{"template": "fib", "optimize": true, "includeRuntime": false},
					ResultHint: "assembly lines on stdout, artifact /data/out.s",
				},
			},
			InputSchema: objectSchema(sourceProps(), compileProps(), props{
				"showAssembly": boolProp("Include the generated assembly in the output (default true)."),
			}),
			Annotations: annotations("Compile C", false),
			Tags:        []string{"compiler", "c", "assembly"},
			Handler: func(ctx context.Context, args map[string]any) (Result, error) {
				source, opts, err := compileArgs(args, true)
				if err != nil {
					return Result{}, err
				}
				path, err := p.Compile(ctx, source, opts)
				return Result{Path: path}, err
			},
		},
		{
			Name:        ToolBuild,
			Title:       "Build binary",
			Description: "Compiles and assembles C source and stages the binary into the simulator without running it. Returns the binary path.",
			Summary:     "C to a staged binary",
			InputSchema: objectSchema(sourceProps(), compileProps(), assembleProps()),
			Annotations: annotations("Build binary", false),
			Tags:        []string{"compiler", "assembler", "build"},
			Handler: func(ctx context.Context, args map[string]any) (Result, error) {
				opts, source, err := pipelineArgs(args)
				if err != nil {
					return Result{}, err
				}
				path, err := p.Build(ctx, source, opts)
				return Result{Path: path}, err
			},
		},
		{
			Name:        ToolRun,
			Title:       "Run binary",
			Description: "Runs a binary already present in the simulator sandbox and returns its exit status and output.",
			Summary:     "Simulate a staged binary",
			InputSchema: objectSchema(pathProps(), simProps()),
			Annotations: annotations("Run binary", false),
			Tags:        []string{"simulator", "riscv", "run"},
			Handler: func(ctx context.Context, args map[string]any) (Result, error) {
				path, err := pathArg(args)
				if err != nil {
					return Result{}, err
				}
				sim, err := simOptionsArg(args)
				if err != nil {
					return Result{}, err
				}
				code, err := p.Run(ctx, path, sim.Args()...)
				return Result{Path: path, ExitCode: code}, err
			},
		},
		{
			Name:        ToolAnalyze,
			Title:       "Analyze binary",
			Description: "Copies a binary from the simulator sandbox to the analyzer and reports its sections, symbols and statistics.",
			Summary:     "Inspect an ELF binary",
			InputSchema: objectSchema(pathProps(), analyzeProps()),
			Annotations: annotations("Analyze binary", true),
			Tags:        []string{"analyzer", "elf", "inspect"},
			Handler: func(ctx context.Context, args map[string]any) (Result, error) {
				path, err := pathArg(args)
				if err != nil {
					return Result{}, err
				}
				opts, err := analyzeOptionsArg(args)
				if err != nil {
					return Result{}, err
				}
				code, err := p.Analyze(ctx, path, opts)
				return Result{Path: path, ExitCode: code}, err
			},
		},
		{
			Name:        ToolCompileAssembleRun,
			Title:       "Compile, assemble and run",
			Description: "Runs the full toolchain on C source: compile, assemble, then simulate. Returns the program's exit status and output.",
			Summary:     "C source to program output",
			Examples: []tooldoc.ToolExample{
				{
					ID:         "hello",
					Title:      "Run the hello template",
					Args:       map[string]any{"template": "hello"},
					ResultHint: "[stdout] OK, exit status 0",
				},
				{
					ID:          "bounded",
					Title:       "Run source with an instruction limit",
					Description: "Stops the simulator after maxSteps instructions.",
					Args: map[string]any{
						"source":   "int main(){ return 3; }",
						"maxSteps": 10000,
					},
					ResultHint: "exit status 3",
				},
			},
			InputSchema: objectSchema(sourceProps(), compileProps(), assembleProps(), simProps()),
			Annotations: annotations("Compile, assemble and run", false),
			Tags:        []string{"compiler", "assembler", "simulator", "pipeline"},
			Handler: func(ctx context.Context, args map[string]any) (Result, error) {
				opts, source, err := pipelineArgs(args)
				if err != nil {
					return Result{}, err
				}
				if opts.Sim, err = simOptionsArg(args); err != nil {
					return Result{}, err
				}
				code, err := p.CompileAssembleRun(ctx, source, opts)
				return Result{Path: pipeline.ELFPath, ExitCode: code}, err
			},
		},
	}
}

func compileArgs(args map[string]any, showAssembly bool) (string, pipeline.CompileOptions, error) {
	source, err := sourceArg(args)
	if err != nil {
		return "", pipeline.CompileOptions{}, err
	}
	opts, err := compileOptionsArg(args, showAssembly)
	return source, opts, err
}

func pipelineArgs(args map[string]any) (pipeline.Options, string, error) {
	var opts pipeline.Options
	source, compile, err := compileArgs(args, false)
	if err != nil {
		return opts, "", err
	}
	opts.Compile = compile
	if opts.Assemble.RawBinary, _, err = boolArg(args, "rawBinary"); err != nil {
		return opts, "", err
	}
	return opts, source, nil
}

func pathArg(args map[string]any) (string, error) {
	path, ok, err := stringArg(args, "path")
	if err != nil {
		return "", err
	}
	if !ok || path == "" {
		return pipeline.ELFPath, nil
	}
	return path, nil
}

// exitCode extracts the failing tool's exit status from a stage error.
func exitCode(err error) int {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return se.ExitCode
	}
	return 0
}

func annotations(title string, readOnly bool) *mcp.ToolAnnotations {
	no := false
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    readOnly,
		IdempotentHint:  true,
		DestructiveHint: &no,
		OpenWorldHint:   &no,
	}
}

type props map[string]any

func objectSchema(groups ...props) map[string]any {
	properties := map[string]any{}
	for _, g := range groups {
		maps.Copy(properties, g)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func sourceProps() props {
	names := make([]any, 0, len(pipeline.Templates))
	for _, t := range pipeline.Templates {
		names = append(names, t.Name)
	}
	return props{
		"source": map[string]any{
			"type":        "string",
			"description": "C source text. Mutually exclusive with template.",
		},
		"template": map[string]any{
			"type":        "string",
			"enum":        names,
			"description": "Name of a built-in program to use instead of source.",
		},
	}
}

func compileProps() props {
	return props{
		"optimize":       boolProp("Enable compiler optimizations."),
		"includeRuntime": boolProp("Prepend the runtime library assembly (default true)."),
		"preferLibrary":  boolProp("Resolve calls to the runtime library (default true)."),
	}
}

func assembleProps() props {
	return props{
		"rawBinary": boolProp("Produce a flat binary instead of ELF."),
	}
}

func pathProps() props {
	return props{
		"path": map[string]any{
			"type":        "string",
			"description": "Binary path in the simulator sandbox (default " + pipeline.ELFPath + ").",
		},
	}
}

func simProps() props {
	return props{
		"trace":         boolProp("Trace every executed instruction."),
		"dumpRegisters": boolProp("Print the registers on exit."),
		"maxSteps":      map[string]any{"type": "integer", "minimum": 0, "description": "Instruction limit."},
		"memoryBytes":   map[string]any{"type": "integer", "minimum": 0, "description": "Guest memory size."},
		"entry":         map[string]any{"type": "integer", "minimum": 0, "description": "Entry point override."},
		"args": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Extra simulator arguments.",
		},
	}
}

func analyzeProps() props {
	return props{
		"onlyText":     boolProp("Only report the text section."),
		"stats":        boolProp("Report instruction statistics."),
		"json":         boolProp("Emit JSON."),
		"stopAtEbreak": boolProp("Stop disassembly at the first ebreak."),
	}
}
