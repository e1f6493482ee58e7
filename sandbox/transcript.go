package sandbox

import "sync"

// Stream names an output channel.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one line of tool output tagged with its channel.
type Line struct {
	Stream Stream `json:"stream"`
	Text   string `json:"text"`
}

// Transcript collects output lines from several sandboxes in arrival order.
// It is used where live output cannot be streamed, such as tool calls served
// over a protocol.
type Transcript struct {
	mu    sync.Mutex
	lines []Line
}

// Sink returns a LineSink that appends to the transcript under stream.
func (t *Transcript) Sink(stream Stream) LineSink {
	return func(text string) {
		t.mu.Lock()
		t.lines = append(t.lines, Line{Stream: stream, Text: text})
		t.mu.Unlock()
	}
}

// Drain returns the collected lines and empties the transcript.
func (t *Transcript) Drain() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.lines
	t.lines = nil
	return out
}

// String renders the line with its channel tag, e.g. "[stdout] OK".
func (l Line) String() string {
	return "[" + string(l.Stream) + "] " + l.Text
}
