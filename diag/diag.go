// Package diag buffers the diagnostics raised while relocating and
// relaxing. Diagnostics never abort a pass; the caller decides at the end
// whether the errors among them fail the link.
package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Diagnostic is one problem found at one relocation.
type Diagnostic struct {
	Class    error
	Severity Severity
	Object   string
	Section  string
	Offset   uint32
	Reloc    string
	Symbol   string
	Detail   string
}

func (d Diagnostic) Error() string {
	s := strings.Builder{}
	if d.Object != "" {
		s.WriteString(d.Object)
		s.WriteString(":")
	}
	if d.Section != "" {
		s.WriteString(fmt.Sprintf("(%s+0x%x): ", d.Section, d.Offset))
	} else if d.Object != "" {
		s.WriteString(" ")
	}
	s.WriteString(d.Class.Error())
	if d.Reloc != "" {
		s.WriteString(" ")
		s.WriteString(d.Reloc)
	}
	if d.Symbol != "" {
		s.WriteString(fmt.Sprintf(" against `%s'", d.Symbol))
	}
	if d.Detail != "" {
		s.WriteString(": ")
		s.WriteString(d.Detail)
	}
	return s.String()
}

func (d Diagnostic) Unwrap() error {
	return d.Class
}

// Reporter receives every diagnostic as it is raised.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) {
	f(d)
}

// Entry is a diagnostic plus the number of identical diagnostics that
// immediately followed it.
type Entry struct {
	Diagnostic
	repeated int
}

func (e *Entry) Repeated() int {
	return e.repeated
}

func (e *Entry) String() string {
	s := strings.Builder{}
	s.WriteString(fmt.Sprintf("%s: %s: %s", e.Severity, Tag(e.Class), e.Diagnostic.Error()))
	if e.repeated > 0 {
		s.WriteString(fmt.Sprintf(" (repeat x%d)", e.repeated+1))
	}
	s.WriteString("\n")
	return s.String()
}

const DefaultMaxEntries = 1000

// Log holds the diagnostics of one link.
type Log struct {
	maxEntries int
	entries    []Entry
	dropped    int
	errors     int
	echo       io.Writer
	reporter   Reporter
}

func NewLog(maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{
		maxEntries: maxEntries,
		entries:    make([]Entry, 0),
	}
}

// SetEcho mirrors every new entry to w. A nil writer turns echoing off.
func (l *Log) SetEcho(w io.Writer) {
	l.echo = w
}

func (l *Log) SetReporter(r Reporter) {
	l.reporter = r
}

// Add records d. A diagnostic identical to the previous one only bumps the
// repeat count of that entry.
func (l *Log) Add(d Diagnostic) {
	if d.Class == nil {
		d.Class = ErrFatal
	}
	if d.Severity == Error {
		l.errors++
	}
	if l.reporter != nil {
		l.reporter.Report(d)
	}

	var e *Entry
	if n := len(l.entries); n > 0 && l.entries[n-1].Diagnostic == d {
		e = &l.entries[n-1]
		e.repeated++
	} else {
		l.entries = append(l.entries, Entry{Diagnostic: d})
		e = &l.entries[len(l.entries)-1]
	}

	// maintain maximum length
	if len(l.entries) > l.maxEntries {
		drop := len(l.entries) - l.maxEntries
		l.dropped += drop
		l.entries = l.entries[drop:]
		e = &l.entries[len(l.entries)-1]
	}

	if l.echo != nil {
		io.WriteString(l.echo, e.String())
	}
}

// Warnf and Errorf are shorthands for diagnostics without a location.
func (l *Log) Warnf(class error, format string, args ...interface{}) {
	l.Add(Diagnostic{Class: class, Severity: Warning, Detail: fmt.Sprintf(format, args...)})
}

func (l *Log) Errorf(class error, format string, args ...interface{}) {
	l.Add(Diagnostic{Class: class, Severity: Error, Detail: fmt.Sprintf(format, args...)})
}

func (l *Log) Entries() []Entry {
	c := make([]Entry, len(l.entries))
	copy(c, l.entries)
	return c
}

// Errors returns the retained diagnostics of Error severity.
func (l *Log) Errors() []Diagnostic {
	var ds []Diagnostic
	for _, e := range l.entries {
		if e.Severity == Error {
			ds = append(ds, e.Diagnostic)
		}
	}
	return ds
}

// ErrorCount counts every Error severity diagnostic ever added, including
// repeats and entries dropped from the log.
func (l *Log) ErrorCount() int {
	return l.errors
}

// Count returns how many retained diagnostics, repeats included, belong to
// class.
func (l *Log) Count(class error) int {
	n := 0
	for _, e := range l.entries {
		if errors.Is(e.Class, class) {
			n += e.repeated + 1
		}
	}
	return n
}

func (l *Log) Clear() {
	l.entries = l.entries[:0]
	l.dropped = 0
	l.errors = 0
}

// Write prints every retained entry to output. It returns false when there
// was nothing to print.
func (l *Log) Write(output io.Writer) bool {
	if len(l.entries) == 0 {
		return false
	}
	if l.dropped > 0 {
		io.WriteString(output, fmt.Sprintf("(%d earlier diagnostics dropped)\n", l.dropped))
	}
	for _, e := range l.entries {
		io.WriteString(output, e.String())
	}
	return true
}
