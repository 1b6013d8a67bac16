package errors

import (
	"strconv"
	"strings"

	"mercator-hq/verdict/pkg/rdl/ast"
)

// Snippet renders the source lines within radius of loc, numbered, with the
// offending line marked "->" and a caret under loc's column. It returns ""
// when loc falls outside source.
func Snippet(source []byte, loc ast.Location, radius int) string {
	if loc.Line < 1 || len(source) == 0 {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(source), "\n"), "\n")
	if loc.Line > len(lines) {
		return ""
	}

	first := max(loc.Line-radius, 1)
	last := min(loc.Line+radius, len(lines))
	width := len(strconv.Itoa(last))

	var sb strings.Builder
	for n := first; n <= last; n++ {
		marker := "  "
		if n == loc.Line {
			marker = "->"
		}
		num := strconv.Itoa(n)
		sb.WriteString(marker + " " + strings.Repeat(" ", width-len(num)) + num + " | " + lines[n-1] + "\n")
		if n == loc.Line && loc.Column > 0 {
			sb.WriteString("   " + strings.Repeat(" ", width) + " | " + strings.Repeat(" ", loc.Column-1) + "^\n")
		}
	}
	return sb.String()
}

// AttachSnippets fills in the Snippet of every error that lacks one.
func (l *ErrorList) AttachSnippets(source []byte, radius int) {
	for _, e := range l.Errors {
		if e.Snippet == "" {
			e.Snippet = Snippet(source, e.Location, radius)
		}
	}
}
