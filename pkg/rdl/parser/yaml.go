package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// parseNode reads YAML or JSON into a node tree. JSON is checked with
// encoding/json first for a precise syntax error, then read through the YAML
// parser so that both formats carry line and column information.
func parseNode(data []byte) (*yaml.Node, error) {
	if looksLikeJSON(data) {
		if !json.Valid(data) {
			var v any
			err := json.Unmarshal(data, &v)
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		// Raw tabs cannot appear inside JSON strings, so replacing them
		// keeps columns while avoiding YAML indentation rules.
		data = bytes.ReplaceAll(data, []byte("\t"), []byte(" "))
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// syntaxErrorLine extracts the line number from a yaml.v3 error message.
func syntaxErrorLine(err error) int {
	m := yamlLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 1
	}
	line, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 1
	}
	return line
}

// resolveAlias follows YAML aliases to the anchored node.
func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// mappingPair is one key/value entry of a mapping node.
type mappingPair struct {
	key   *yaml.Node
	value *yaml.Node
}

func mappingPairs(node *yaml.Node) []mappingPair {
	pairs := make([]mappingPair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, mappingPair{key: node.Content[i], value: resolveAlias(node.Content[i+1])})
	}
	return pairs
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return "null"
		case "!!int", "!!float":
			return "number"
		case "!!bool":
			return "boolean"
		default:
			return "string"
		}
	default:
		return "unknown"
	}
}
