package sandbox

import (
	"bytes"
	"strings"
	"sync"
)

// LineSink receives one line of tool output, without its trailing newline.
//
// Contract:
// - Ordering: lines arrive in exactly the order the tool emitted them.
// - Sinks must not call back into the sandbox that feeds them.
type LineSink func(line string)

// discard is used when no sink is configured.
func discard(string) {}

// Router routes a sandbox's normal output channel. By default every line is
// passed through to the live sink; an active Capture intercepts lines for the
// duration of one invocation.
type Router struct {
	mu      sync.Mutex
	sink    LineSink
	capture *Capture
}

// NewRouter returns a pass-through router feeding sink.
func NewRouter(sink LineSink) *Router {
	if sink == nil {
		sink = discard
	}
	return &Router{sink: sink}
}

// Emit routes one line.
func (r *Router) Emit(line string) {
	r.mu.Lock()
	c := r.capture
	if c != nil {
		c.lines = append(c.lines, line)
	}
	sink := r.sink
	r.mu.Unlock()

	if c == nil || !c.suppress {
		sink(line)
	}
}

// Capture begins buffering the normal channel. When suppressLive is true the
// buffered lines are not forwarded to the live sink.
//
// Captures nest: releasing an inner capture restores the outer one.
func (r *Router) Capture(suppressLive bool) *Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Capture{router: r, suppress: suppressLive, prev: r.capture}
	r.capture = c
	return c
}

// Capturing reports whether a capture is currently held.
func (r *Router) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}

// Capture is a scoped redirection of a sandbox's normal output.
// Release reverts routing; further calls return the same text.
type Capture struct {
	router   *Router
	suppress bool
	prev     *Capture

	lines    []string
	released bool
	text     string
}

// Lines returns a copy of the lines buffered so far.
func (c *Capture) Lines() []string {
	c.router.mu.Lock()
	defer c.router.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Release ends the capture and returns the buffered lines joined with
// newlines plus a trailing newline.
func (c *Capture) Release() string {
	r := c.router
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.released {
		return c.text
	}
	c.released = true
	if r.capture == c {
		r.capture = c.prev
	}
	c.text = strings.Join(c.lines, "\n") + "\n"
	return c.text
}

// WithCapture runs fn while capturing sb's normal output and returns the
// captured text. The capture is released on every exit path, including a
// panic in fn.
func WithCapture(sb *Sandbox, suppressLive bool, fn func() error) (string, error) {
	c := sb.Capture(suppressLive)
	defer c.Release()
	err := fn()
	return c.Release(), err
}

// lineWriter splits a byte stream into lines and hands each one to emit.
type lineWriter struct {
	emit LineSink
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.emit(line[:i])
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	line := w.buf.String()
	w.buf.Reset()
	w.emit(line)
}
