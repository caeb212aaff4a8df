package buildlog

import (
	"strings"
	"sync"
	"time"
)

// Kind of a recorded logger call.
type EventKind string

const (
	EventHeader    EventKind = "header"
	EventSection   EventKind = "section"
	EventStep      EventKind = "step"
	EventStart     EventKind = "start"
	EventLine      EventKind = "line"
	EventTick      EventKind = "tick"
	EventStop      EventKind = "stop"
	EventWarning   EventKind = "warning"
	EventImportant EventKind = "important"
	EventError     EventKind = "error"
	EventDone      EventKind = "done"
)

// Recorded logger call.
type Event struct {
	Kind    EventKind     // Which method was called.
	Text    string        // Message, or header and body joined by a newline.
	Elapsed time.Duration // Elapsed time for ticks, stops and done.
}

// Logger that records every call, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Returns a copy of the recorded events in call order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Returns the texts of the recorded events of the given kind.
func (r *Recorder) Texts(kind EventKind) []string {
	var texts []string
	for _, e := range r.Events() {
		if e.Kind == kind {
			texts = append(texts, e.Text)
		}
	}
	return texts
}

// Returns true if an event of the given kind contains substr.
func (r *Recorder) Contains(kind EventKind, substr string) bool {
	for _, text := range r.Texts(kind) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Header(name string)    { r.record(Event{Kind: EventHeader, Text: name}) }
func (r *Recorder) Section(title string)  { r.record(Event{Kind: EventSection, Text: title}) }
func (r *Recorder) Step(msg string)       { r.record(Event{Kind: EventStep, Text: msg}) }
func (r *Recorder) StartTimed(msg string) { r.record(Event{Kind: EventStart, Text: msg}) }
func (r *Recorder) Line(line string)      { r.record(Event{Kind: EventLine, Text: line}) }

func (r *Recorder) Tick(elapsed time.Duration) {
	r.record(Event{Kind: EventTick, Elapsed: elapsed})
}

func (r *Recorder) StopTimed(elapsed time.Duration) {
	r.record(Event{Kind: EventStop, Elapsed: elapsed})
}

func (r *Recorder) Warning(header, body string) {
	r.record(Event{Kind: EventWarning, Text: header + "\n" + body})
}

func (r *Recorder) Important(header, body string) {
	r.record(Event{Kind: EventImportant, Text: header + "\n" + body})
}

func (r *Recorder) Error(header, body string) {
	r.record(Event{Kind: EventError, Text: header + "\n" + body})
}

func (r *Recorder) Done(elapsed time.Duration) {
	r.record(Event{Kind: EventDone, Elapsed: elapsed})
}
