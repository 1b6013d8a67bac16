package errors

import (
	"fmt"
	"strings"

	"mercator-hq/verdict/pkg/rdl/ast"
)

// Kind says which stage of reading a rule file failed.
type Kind string

const (
	// KindIO: the file could not be read, or is too large.
	KindIO Kind = "io"
	// KindSyntax: the bytes are not valid YAML or JSON.
	KindSyntax Kind = "syntax"
	// KindStructure: the document parsed but a field is missing, unknown
	// or of the wrong shape.
	KindStructure Kind = "structure"
)

// Error is one located problem in a rule file.
type Error struct {
	Kind     Kind
	Message  string
	Location ast.Location

	// Snippet holds the numbered source lines around Location, if known.
	Snippet string

	// Hint is a likely fix, such as the nearest valid field name.
	Hint string

	// Err is the underlying error, for errors.Is and errors.As.
	Err error
}

// Error renders the problem compiler style:
//
//	rules.yaml:7:13: structure: unknown operator "gte2"
//	   6 |     condition:
//	-> 7 |       op: gte2
//	     |           ^
//	  hint: Did you mean 'gte'?
func (e *Error) Error() string {
	var sb strings.Builder
	switch {
	case e.Location.IsValid():
		sb.WriteString(e.Location.String() + ": ")
	case e.Location.File != "":
		sb.WriteString(e.Location.File + ": ")
	}
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if e.Snippet != "" {
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimRight(e.Snippet, "\n"))
	}
	if e.Hint != "" {
		sb.WriteString("\n  hint: ")
		sb.WriteString(e.Hint)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorList gathers every problem found in a document so that one parse
// reports all of them. The zero value is ready to use.
type ErrorList struct {
	Errors []*Error
}

// Add records a problem at loc. hint may be empty.
func (l *ErrorList) Add(kind Kind, loc ast.Location, message, hint string) {
	l.Errors = append(l.Errors, &Error{Kind: kind, Location: loc, Message: message, Hint: hint})
}

// Len returns the number of problems recorded.
func (l *ErrorList) Len() int { return len(l.Errors) }

// Err returns l as an error, or nil when nothing was recorded.
func (l *ErrorList) Err() error {
	if len(l.Errors) == 0 {
		return nil
	}
	return l
}

func (l *ErrorList) Error() string {
	switch len(l.Errors) {
	case 0:
		return "no errors"
	case 1:
		return l.Errors[0].Error()
	}
	parts := make([]string, len(l.Errors))
	for i, e := range l.Errors {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d problems:\n%s", len(l.Errors), strings.Join(parts, "\n"))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	out := make([]error, len(l.Errors))
	for i, e := range l.Errors {
		out[i] = e
	}
	return out
}
