package buildlog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const (
	stepIndent   = "  "
	outputIndent = "      "
)

// Logger writing a human-readable build log to a terminal or file.
//
// Safe for concurrent use; writes are serialized.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	progress bool // A timed step header is printed and awaits dots or output.
	streamed bool // The open timed step has printed command output.
}

// Creates a terminal logger writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Implements [Logger].
func (t *Terminal) Header(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "\n%s\n\n", headerColor.Sprint("# "+name))
}

// Implements [Logger].
func (t *Terminal) Section(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "- %s\n", title)
}

// Implements [Logger].
func (t *Terminal) Step(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "%s- %s\n", stepIndent, indent(msg, stepIndent+"  "))
}

// Implements [Logger].
func (t *Terminal) StartTimed(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "%s- %s", stepIndent, indent(msg, stepIndent+"  "))
	t.progress = true
	t.streamed = false
}

// Implements [Logger].
func (t *Terminal) Line(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress {
		io.WriteString(t.w, "\n\n")
		t.progress = false
	}
	t.streamed = true
	fmt.Fprintf(t.w, "%s%s\n", outputIndent, line)
}

// Implements [Logger]. Prints a progress dot while the step is silent.
func (t *Terminal) Tick(time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress {
		io.WriteString(t.w, " .")
	}
}

// Implements [Logger].
func (t *Terminal) StopTimed(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.progress:
		fmt.Fprintf(t.w, " %s\n", Details(Duration(elapsed)))
	case t.streamed:
		fmt.Fprintf(t.w, "\n%s- Done %s\n", stepIndent, Details(Duration(elapsed)))
	}
	t.progress = false
	t.streamed = false
}

// Implements [Logger].
func (t *Terminal) Warning(header, body string) {
	t.announce(warningColor, "Warning: "+header, body)
}

// Implements [Logger].
func (t *Terminal) Important(header, body string) {
	t.announce(importantColor, "Important: "+header, body)
}

// Implements [Logger].
func (t *Terminal) Error(header, body string) {
	t.announce(errorColor, "Error: "+header, body)
}

// Implements [Logger].
func (t *Terminal) Done(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "- Done %s\n", Details("finished in "+Duration(elapsed)))
}

// Prints an announcement block with every line prefixed by "! ".
func (t *Terminal) announce(c *color.Color, header, body string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(c.Sprint("! "+header) + "\n")
	if body = strings.TrimRight(body, "\n"); body != "" {
		b.WriteString(c.Sprint("!") + "\n")
		for _, line := range strings.Split(body, "\n") {
			b.WriteString(strings.TrimRight(c.Sprint("! "+line), " ") + "\n")
		}
	}
	b.WriteString("\n")
	io.WriteString(t.w, b.String())
}

// Terminates a pending timed step header line.
func (t *Terminal) endProgress() {
	if t.progress {
		io.WriteString(t.w, "\n")
		t.progress = false
	}
	t.streamed = false
}

// Indents every line of s after the first with prefix.
func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
