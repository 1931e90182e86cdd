package errors

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// style is an SGR escape sequence.
type style string

const (
	styleReset  style = "\033[0m"
	styleError  style = "\033[1;31m"
	styleTitle  style = "\033[1m"
	styleGutter style = "\033[34m"
	styleLabel  style = "\033[36m"
	styleMuted  style = "\033[90m"
)

var colorEnabled = true

// DisableColors turns off escape sequences in Format and Print.
func DisableColors() {
	colorEnabled = false
}

// EnableColors turns escape sequences back on.
func EnableColors() {
	colorEnabled = true
}

func (s style) paint(text string) string {
	if !colorEnabled || text == "" {
		return text
	}
	return string(s) + text + string(styleReset)
}

// labelWidth is the longest detail drawn next to the caret; longer ones get
// their own paragraph.
const labelWidth = 60

// report renders one *Error as a header, a source snippet and trailing
// "= key: value" lines.
type report struct {
	b      strings.Builder
	gutter int
}

// Format renders e for a terminal:
//
//	error[E210]: Link failed
//	  --> pages/index.ts:2:3
//	   |
//	 2 | const x = ;
//	   |           ^ Unexpected ";"
//	   |
//	   = cause: 1 error(s): Unexpected ";"
//	   = docs: https://routewrap.dev/docs/errors/E210
func (e *Error) Format() string {
	r := &report{gutter: e.gutterWidth()}
	r.header(e)

	labelled := false
	if e.Location != nil {
		r.line(strings.Repeat(" ", r.gutter) + styleGutter.paint("-->") + " " + e.Location.String())
		labelled = r.snippet(e)
	}
	if e.Detail != "" && !labelled {
		for _, l := range wrapText(e.Detail, 70) {
			r.line(strings.Repeat(" ", r.gutter+1) + "  " + l)
		}
	}

	if e.Wrapped != nil {
		r.field("cause", e.Wrapped.Error())
	}
	for _, n := range e.Notes {
		r.field("note", n)
	}
	if e.Suggestion != "" {
		r.field("hint", e.Suggestion)
	}
	if e.DocURL != "" {
		r.field("docs", e.DocURL)
	}
	return r.b.String()
}

func (r *report) line(s string) {
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *report) header(e *Error) {
	kind := "error"
	if e.Code != "" {
		kind += "[" + e.Code + "]"
	}
	r.line(styleError.paint(kind) + styleTitle.paint(": "+e.Message))
}

// bar is an empty gutter row, or one carrying a line number.
func (r *report) bar(num int) string {
	n := ""
	if num > 0 {
		n = strconv.Itoa(num)
	}
	return styleGutter.paint(fmt.Sprintf(" %*s |", r.gutter, n))
}

// snippet prints the context lines with a caret under the location. It
// reports whether the detail was drawn as the caret label.
func (r *report) snippet(e *Error) bool {
	if len(e.Context) == 0 {
		return false
	}

	labelled := false
	r.line(r.bar(0))
	start := e.contextStart()
	for i, text := range e.Context {
		num := start + i
		r.line(r.bar(num) + " " + text)
		if num != e.Location.Line || e.Location.Column < 1 {
			continue
		}
		caret := r.bar(0) + " " + strings.Repeat(" ", e.Location.Column-1) + styleError.paint("^")
		if d := e.Detail; d != "" && len(d) <= labelWidth && !strings.Contains(d, "\n") {
			caret += " " + styleError.paint(d)
			labelled = true
		}
		r.line(caret)
	}
	r.line(r.bar(0))
	return labelled
}

func (r *report) field(key, value string) {
	lines := strings.Split(strings.TrimRight(value, "\n"), "\n")
	pad := strings.Repeat(" ", r.gutter+1)
	r.line(pad + " " + styleLabel.paint("= "+key+":") + " " + lines[0])
	for _, l := range lines[1:] {
		r.line(pad + strings.Repeat(" ", len(key)+5) + l)
	}
}

// contextStart is the line number of Context[0]. Lines handed over through
// WithContext are taken as centred on the location.
func (e *Error) contextStart() int {
	if e.ContextStart > 0 {
		return e.ContextStart
	}
	if e.Location == nil {
		return 1
	}
	if start := e.Location.Line - len(e.Context)/2; start > 1 {
		return start
	}
	return 1
}

func (e *Error) gutterWidth() int {
	last := 0
	if e.Location != nil {
		last = e.Location.Line
		if n := e.contextStart() + len(e.Context) - 1; n > last {
			last = n
		}
	}
	if w := len(strconv.Itoa(last)); w > 1 {
		return w
	}
	return 1
}

// FormatCompact renders e on one line, prefixed by its location when known.
// Build manifests record failures in this form.
func (e *Error) FormatCompact() string {
	parts := make([]string, 0, 4)
	if e.Location != nil {
		parts = append(parts, e.Location.String())
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)
	if e.Wrapped != nil {
		parts = append(parts, e.Wrapped.Error())
	}
	return strings.Join(parts, ": ")
}

// wrapText breaks text into lines of at most width bytes on word boundaries.
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := []string{words[0]}
	for _, w := range words[1:] {
		last := &lines[len(lines)-1]
		if len(*last)+1+len(w) > width {
			lines = append(lines, w)
			continue
		}
		*last += " " + w
	}
	return lines
}

// Print writes err to w, fully rendered when it is an *Error.
func Print(w io.Writer, err error) {
	if re, ok := err.(*Error); ok {
		fmt.Fprint(w, "\n"+re.Format()+"\n")
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", styleError.paint("error:"), err.Error())
}
