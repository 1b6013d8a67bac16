package facts

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// MaxLineSize bounds a single line read by DecodeLines.
const MaxLineSize = 4 << 20

// Decode parses a YAML or JSON document whose root is a mapping into a
// fact context. Integers stay integers; an empty document yields an empty
// context.
func Decode(data []byte) (*Context, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode facts: %w", err)
	}
	return FromMap(m)
}

// DecodeLines decodes one JSON object per non-blank line of r, as in JSON
// Lines input, and calls fn with the 1-based line number and the result.
// A line that fails to decode is passed to fn with its error; reading
// stops when fn returns an error.
func DecodeLines(r io.Reader, fn func(line int, fc *Context, err error) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		fc, decodeErr := Decode(data)
		if err := fn(line, fc, decodeErr); err != nil {
			return err
		}
	}
	return scanner.Err()
}
