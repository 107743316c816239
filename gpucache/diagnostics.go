package gpucache

import (
	"fmt"
	"strings"
)

// Severity classifies one compile diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one line:column-annotated message produced while
// compiling generated shader source.
type Diagnostic struct {
	Severity Severity
	Message  string
	Line     int
	Column   int
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

// CompileError wraps a shader compiler's diagnostic list together with
// the source that produced them, so the error text always carries a
// numbered source listing, per spec.md §4.7/§7.
type CompileError struct {
	Diagnostics []Diagnostic
	Source      string
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "gpucache: shader compile failed with %d diagnostic(s):\n", len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		fmt.Fprintf(&sb, "  %s\n", d)
	}
	sb.WriteString(numberedListing(e.Source))
	return sb.String()
}

// HasErrors reports whether any diagnostic is error-level; only then does
// compilation actually fail (warnings alone do not abort).
func (e *CompileError) HasErrors() bool {
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// numberedListing renders source with a right-aligned line number per
// line, the presentation naga/wgsl.SourceErrors uses for compiler
// diagnostics (see SourceError.FormatWithContext), reused here since
// spec.md §4.7 requires "a numbered source listing" without specifying
// its format.
func numberedListing(source string) string {
	lines := strings.Split(source, "\n")
	var sb strings.Builder
	sb.WriteString("  --- source ---\n")
	for i, line := range lines {
		fmt.Fprintf(&sb, "%4d| %s\n", i+1, line)
	}
	return sb.String()
}
