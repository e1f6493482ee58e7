// Package pipeline sequences the compiler, assembler, simulator and analyzer
// sandboxes into the toolchain's composed operations.
//
// Sandboxes never see each other's files. The pipeline moves artifacts
// between them by copy at fixed paths (see InputPath, AsmPath, ELFPath and
// AnalyzePath) and attributes every failure to the stage that produced it.
//
// # Operations
//
//   - Compile writes C source into the compiler sandbox and produces assembly,
//     prepending the cached runtime library assembly unless disabled.
//   - Assemble turns assembly already present in the assembler sandbox into
//     a binary.
//   - Run executes a binary already present in the simulator sandbox.
//   - Analyze copies a binary from the simulator sandbox into the analyzer
//     sandbox and inspects it.
//   - Build and CompileAssembleRun compose the stages, stopping at the first
//     failure with an *AbortError.
//
// # Usage
//
//	p, err := pipeline.Open(ctx, pipeline.OpenOptions{
//	    Loader: pipeline.DirLoader("payloads"),
//	    Stdout: func(line string) { fmt.Println(line) },
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close(ctx)
//
//	code, err := p.CompileAssembleRun(ctx, source, pipeline.Options{})
//
// Operations on one Pipeline are serialized.
package pipeline
