package notifier

import (
	"fmt"
	"io"
	"sync"
)

// TerminalSink prints events to a terminal. Same-line events overwrite the
// current line; color codes are dropped when NoColor is set.
type TerminalSink struct {
	mu       sync.Mutex
	out      io.Writer
	NoColor  bool
	sameLine bool
}

func NewTerminalSink(out io.Writer, noColor bool) *TerminalSink {
	return &TerminalSink{out: out, NoColor: noColor}
}

func (s *TerminalSink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := e.Message
	if s.NoColor {
		text = e.Clean
	} else if e.Color != "" {
		text = e.Color + text + End
	}

	var err error
	switch {
	case e.SameLine:
		_, err = fmt.Fprintf(s.out, "\r%s", text)
	case s.sameLine:
		_, err = fmt.Fprintf(s.out, "\r%s\n", text)
	default:
		_, err = fmt.Fprintln(s.out, text)
	}
	s.sameLine = e.SameLine
	return err
}
