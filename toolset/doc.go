// Package toolset exposes the toolchain pipeline as discoverable tools.
//
// Each composed operation (compile, build, run, analyze and
// compile_assemble_run) is a ToolDef with a JSON input schema and MCP
// annotations. Tools are registered under the "minachain" namespace in a
// tooldiscovery index so they can be searched and documented, and are
// executed by name with JSON-decoded arguments:
//
//	ts, _ := toolset.New(toolset.Config{Pipeline: p, Transcript: transcript})
//	res, err := ts.Execute(ctx, "compile_assemble_run", map[string]any{
//	    "template": "hello",
//	})
//
// When a Transcript is configured, each Result carries the output lines the
// sandboxes emitted during that call.
package toolset
