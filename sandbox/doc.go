// Package sandbox provides isolated execution environments for the toolchain
// stages.
//
// A [Sandbox] wraps exactly one external tool. It owns a private hierarchical
// file [Store] that no other sandbox can see, and an [EntryPoint] that runs the
// tool synchronously with a command-line style argument list. Tools emit text
// on two channels: normal output, routed through the sandbox's [Router], and
// diagnostic output, which always goes straight to the diagnostic sink.
//
// # Capture
//
// The normal channel can be redirected for the duration of one invocation:
//
//	text, err := sandbox.WithCapture(sb, true, func() error {
//	    _, err := sb.Invoke(ctx, "--emit-asm", "/data/input.c")
//	    return err
//	})
//
// Every line emitted while the capture is held is buffered in order. When
// suppressLive is false the line is also forwarded to the live sink. The
// capture is always released, even when the invocation fails.
//
// # Staging
//
// Sandboxes communicate only by copying artifacts:
//
//	err := sandbox.Stage(compiler, "/data/out.s", assembler, "/data/out.s")
//
// # Concurrency
//
// Invoke is serialized per sandbox. Reads and writes on the store are safe for
// concurrent use, but a capture observes every line the sandbox emits, so
// callers that capture must not share the sandbox with concurrent invokers.
package sandbox
