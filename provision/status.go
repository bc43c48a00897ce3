package provision

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// status writes the operator facing status stream.
type status struct {
	w    io.Writer
	ok   *color.Color
	fail *color.Color
	warn *color.Color
}

func newStatus(w io.Writer, colored bool) *status {
	s := &status{
		w:    w,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{s.ok, s.fail, s.warn} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *status) printf(format string, args ...any) {
	fmt.Fprintf(s.w, format, args...)
}

func (s *status) okf(format string, args ...any) {
	s.ok.Fprintf(s.w, format, args...)
}

func (s *status) failf(format string, args ...any) {
	s.fail.Fprintf(s.w, format, args...)
}

func (s *status) warnf(format string, args ...any) {
	s.warn.Fprintf(s.w, format, args...)
}

func (s *status) write(b []byte) {
	_, _ = s.w.Write(b)
}
