package compiler

import "fmt"

// Severity ranks a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Location is a zero-based position in a source file.
type Location struct {
	File string
	Line int
	Col  int
}

// String renders the location one-based, as editors count.
func (l Location) String() string {
	return fmt.Sprintf("%s(%d,%d)", l.File, l.Line+1, l.Col+1)
}

// Diagnostic is one message produced during compilation.
type Diagnostic struct {
	Severity Severity
	Location Location
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Location, d.Message)
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Collector is a Sink that keeps every diagnostic.
type Collector struct {
	Diagnostics []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// Count returns how many diagnostics of severity s were collected.
func (c *Collector) Count(s Severity) int {
	n := 0
	for _, d := range c.Diagnostics {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Error is an abort-causing compile failure.
type Error struct {
	Location Location
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Error at %s: %s", e.Location, e.Message)
}

func errorAt(loc Location, format string, args ...any) error {
	return &Error{Location: loc, Message: fmt.Sprintf(format, args...)}
}

// reporter forwards diagnostics to the sink and remembers the first
// warning so WarningsAsErrors can fail the compile at the end.
type reporter struct {
	sink         Sink
	firstWarning *Error
}

func (r *reporter) report(sev Severity, loc Location, msg string) {
	if r.sink != nil {
		r.sink.Report(Diagnostic{Severity: sev, Location: loc, Message: msg})
	}
}

func (r *reporter) warn(loc Location, msg string) {
	if r.firstWarning == nil {
		r.firstWarning = &Error{Location: loc, Message: "Warning treated as error: " + msg}
	}
	r.report(SeverityWarning, loc, msg)
}
