package measure

import (
	"fmt"
	"io"
)

// Logger receives progress messages. It matches roiexport.Logger.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Level is the severity of a diagnostic entry.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Entry is one recorded diagnostic.
type Entry struct {
	Level   Level
	Message string
}

// Diagnostics collects the log of a single export run. Every entry is kept
// in order and, when a downstream Logger is set, forwarded to it as well.
//
// A Diagnostics belongs to one run; it is not safe for concurrent use. A nil
// *Diagnostics discards everything.
type Diagnostics struct {
	entries []Entry
	next    Logger
}

// NewDiagnostics returns an empty collector forwarding to next (may be nil).
func NewDiagnostics(next Logger) *Diagnostics {
	return &Diagnostics{next: next}
}

func (d *Diagnostics) Infof(format string, args ...any) {
	d.add(LevelInfo, format, args...)
}

func (d *Diagnostics) Warnf(format string, args ...any) {
	d.add(LevelWarn, format, args...)
}

func (d *Diagnostics) Errorf(format string, args ...any) {
	d.add(LevelError, format, args...)
}

func (d *Diagnostics) add(level Level, format string, args ...any) {
	if d == nil {
		return
	}
	d.entries = append(d.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})

	if d.next == nil {
		return
	}
	switch level {
	case LevelWarn:
		d.next.Warnf(format, args...)
	case LevelError:
		d.next.Errorf(format, args...)
	default:
		d.next.Infof(format, args...)
	}
}

// Entries returns a copy of the recorded entries.
func (d *Diagnostics) Entries() []Entry {
	if d == nil {
		return nil
	}
	return append([]Entry(nil), d.entries...)
}

// Lines returns the recorded messages in order.
func (d *Diagnostics) Lines() []string {
	if d == nil {
		return nil
	}
	lines := make([]string, len(d.entries))
	for i, e := range d.entries {
		lines[i] = e.Message
	}
	return lines
}

// Count returns how many entries were recorded at the given level.
func (d *Diagnostics) Count(level Level) int {
	if d == nil {
		return 0
	}
	n := 0
	for _, e := range d.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// WriteTo writes one line per entry. It implements io.WriterTo.
func (d *Diagnostics) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range d.Entries() {
		n, err := fmt.Fprintf(w, "%-5s %s\n", e.Level, e.Message)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
