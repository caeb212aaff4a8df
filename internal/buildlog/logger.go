package buildlog

import "time"

// Sink for build progress messages.
//
// Implementations must tolerate calls to Line, Tick and StopTimed only while a
// timed step is open, and may ignore them otherwise.
type Logger interface {

	// Prints the top-level header naming what is being built.
	Header(name string)

	// Starts a new section. A section is a noun, such as "Ruby version".
	Section(title string)

	// Prints a step within the current section.
	Step(msg string)

	// Opens a timed step whose command output follows.
	StartTimed(msg string)

	// Prints one line of streamed command output.
	Line(line string)

	// Signals that the timed step is still running after elapsed.
	Tick(elapsed time.Duration)

	// Closes the timed step, reporting its duration.
	StopTimed(elapsed time.Duration)

	// Announces a problem that does not stop the build.
	Warning(header, body string)

	// Announces information the operator should read.
	Important(header, body string)

	// Announces the failure that stopped the build.
	Error(header, body string)

	// Announces that the build finished successfully.
	Done(elapsed time.Duration)
}

// Logger that discards everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Header(string)            {}
func (discard) Section(string)           {}
func (discard) Step(string)              {}
func (discard) StartTimed(string)        {}
func (discard) Line(string)              {}
func (discard) Tick(time.Duration)       {}
func (discard) StopTimed(time.Duration)  {}
func (discard) Warning(string, string)   {}
func (discard) Important(string, string) {}
func (discard) Error(string, string)     {}
func (discard) Done(time.Duration)       {}

// Returns a logger forwarding only warnings and errors to l.
func Quiet(l Logger) Logger {
	return quiet{next: l}
}

type quiet struct {
	discard
	next Logger
}

func (q quiet) Warning(header, body string) { q.next.Warning(header, body) }
func (q quiet) Error(header, body string)   { q.next.Error(header, body) }
