package errors

import (
	"fmt"
	"os"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryClassify  Category = "classify"
	CategoryTransform Category = "transform"
	CategoryConfig    Category = "config"
	CategoryArtifact  Category = "artifact"
	CategoryCLI       Category = "cli"
	CategoryProtocol  Category = "protocol"
)

// Location represents a source code location.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Error is a structured error with source location, suggestions, and documentation.
type Error struct {
	// Code is a unique error identifier (e.g., "E210").
	Code string

	// Category is the error type (classify, transform, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the source code location where the error occurred.
	Location *Location

	// Context contains surrounding source code lines.
	Context []string

	// ContextStart is the line number of Context[0]. Zero means Context is
	// centred on Location.
	ContextStart int

	// Notes are secondary messages, such as further diagnostics from the
	// same failed pass.
	Notes []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds source location to the error. Context lines are read
// from the file when it exists on disk.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context, e.ContextStart = readContextLines(file, line, contextLines)
	return e
}

// WithSource replaces the context with lines of src around the location.
// It is used when the text that failed is in memory and may differ from
// the file on disk. Without a location it does nothing.
func (e *Error) WithSource(src string) *Error {
	if e.Location == nil {
		return e
	}
	e.Context, e.ContextStart = contextWindow(splitLines(src), e.Location.Line, contextLines)
	return e
}

// WithNotes appends secondary messages.
func (e *Error) WithNotes(notes ...string) *Error {
	e.Notes = append(e.Notes, notes...)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithContext adds custom context lines to the error.
func (e *Error) WithContext(lines []string) *Error {
	e.Context = lines
	e.ContextStart = 0
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// contextLines is how many source lines a location shows.
const contextLines = 5

// readContextLines reads the lines around targetLine from a file and returns
// them with the number of the first one.
func readContextLines(filename string, targetLine, size int) ([]string, int) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, 0
	}
	return contextWindow(splitLines(string(data)), targetLine, size)
}

func splitLines(src string) []string {
	return strings.Split(strings.TrimSuffix(src, "\n"), "\n")
}

// contextWindow picks up to size lines centred on targetLine (1-based).
func contextWindow(lines []string, targetLine, size int) ([]string, int) {
	if targetLine < 1 || targetLine > len(lines) {
		return nil, 0
	}
	start := max(targetLine-size/2, 1)
	end := min(targetLine+size/2, len(lines))

	window := make([]string, 0, end-start+1)
	for _, l := range lines[start-1 : end] {
		window = append(window, strings.TrimRight(l, "\r"))
	}
	return window, start
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new Error with a formatted message (no code).
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an Error. Errors that already are
// *Error are returned unchanged.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*Error); ok {
		return re
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	for err != nil {
		if re, ok := err.(*Error); ok {
			return re.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
