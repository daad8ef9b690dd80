// Package notifier streams human-readable progress events from the
// automation drivers to whoever is watching the run.
package notifier

import (
	"strings"
	"sync"
)

// ANSI color codes carried in event messages. The color tag of an event is
// the code itself so clients can map it to their own palette.
const (
	Cyan    = "\033[96m"
	Magenta = "\033[95m"
	Blue    = "\033[94m"
	Yellow  = "\033[93m"
	Green   = "\033[92m"
	Red     = "\033[91m"
	Bold    = "\033[1m"
	End     = "\033[0m"
)

var colorStripper = strings.NewReplacer(
	Cyan, "", Magenta, "", Blue, "", Yellow, "", Green, "", Red, "", Bold, "", End, "",
)

// Event is one structured log line.
type Event struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Clean    string `json:"clean"`
	Color    string `json:"color"`
	SameLine bool   `json:"same_line"`
}

// NewEvent builds a log event. Clean is the message without color codes.
func NewEvent(message, color string, sameLine bool) Event {
	return Event{
		Type:     "log",
		Message:  message,
		Clean:    colorStripper.Replace(message),
		Color:    color,
		SameLine: sameLine,
	}
}

// Sink receives events. Implementations must be safe for use by a single
// driver goroutine; Emit errors never stop a run by themselves.
type Sink interface {
	Emit(Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

func (f SinkFunc) Emit(e Event) error { return f(e) }

type nopSink struct{}

func (nopSink) Emit(Event) error { return nil }

// Nop discards every event. It is used when no observer is attached.
var Nop Sink = nopSink{}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Lines returns the clean text of every recorded event.
func (r *Recorder) Lines() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Clean
	}
	return out
}
