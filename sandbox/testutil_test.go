package sandbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

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
	return append([]string(nil), r.lines...)
}

// echoEntry prints each argument on its own stdout line.
var echoEntry = EntryFunc(func(_ context.Context, inv *Invocation) (int, error) {
	for _, a := range inv.Args {
		fmt.Fprintln(inv.Stdout, a)
	}
	return 0, nil
})

func newTestSandbox(t *testing.T, role Role, entry EntryPoint) (*Sandbox, *lineRecorder, *lineRecorder) {
	t.Helper()

	stdout := &lineRecorder{}
	stderr := &lineRecorder{}
	sb, err := New(Config{
		Role:   role,
		Entry:  entry,
		Dir:    t.TempDir(),
		Stdout: stdout.sink,
		Stderr: stderr.sink,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = sb.Close(context.Background()) })
	return sb, stdout, stderr
}
