package main

import (
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/entrhq/htmlshot/pkg/cdp"
)

// tracer prints protocol frames, highlighted as JSON.
type tracer struct {
	w         io.Writer
	formatter string
}

func newTracer(w io.Writer) *tracer {
	formatter := "terminal256"
	if os.Getenv("NO_COLOR") != "" {
		formatter = "noop"
	}
	return &tracer{w: w, formatter: formatter}
}

// observe runs on the connection's dispatch goroutine.
func (t *tracer) observe(dir cdp.Direction, frame []byte) {
	prefix := "-> "
	if dir == cdp.Inbound {
		prefix = "<- "
	}
	_, _ = io.WriteString(t.w, prefix)
	if err := quick.Highlight(t.w, string(frame), "json", t.formatter, "monokai"); err != nil {
		_, _ = t.w.Write(frame)
	}
	_, _ = io.WriteString(t.w, "\n")
}
