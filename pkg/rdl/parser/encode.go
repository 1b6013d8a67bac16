package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"mercator-hq/verdict/pkg/rdl/ast"
)

// Encode renders a document as YAML that ParseBytes reads back into an
// equivalent document. Integer and floating point literals keep their type.
func Encode(doc *ast.Document) ([]byte, error) {
	rules := &yaml.Node{Kind: yaml.SequenceNode}
	for _, rule := range doc.Rules {
		node, err := encodeRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		rules.Content = append(rules.Content, node)
	}

	root := mapping(pair("rules", rules))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRule(rule *ast.RuleDefinition) (*yaml.Node, error) {
	if rule.Condition == nil {
		return nil, fmt.Errorf("missing condition")
	}
	cond, err := encodeCondition(rule.Condition)
	if err != nil {
		return nil, err
	}

	fields := []*yaml.Node{}
	fields = append(fields, pair("name", str(rule.Name))...)
	if rule.Description != "" {
		fields = append(fields, pair("description", str(rule.Description))...)
	}
	fields = append(fields, pair("priority", scalar("!!int", strconv.Itoa(rule.Priority)))...)
	fields = append(fields, pair("condition", cond)...)

	actions := &yaml.Node{Kind: yaml.SequenceNode}
	for _, action := range rule.Actions {
		node, err := encodeAction(action)
		if err != nil {
			return nil, err
		}
		actions.Content = append(actions.Content, node)
	}
	fields = append(fields, pair("actions", actions)...)

	return &yaml.Node{Kind: yaml.MappingNode, Content: fields}, nil
}

func encodeCondition(cond *ast.ConditionNode) (*yaml.Node, error) {
	switch cond.Type {
	case ast.ConditionTypeAll, ast.ConditionTypeAny:
		children := &yaml.Node{Kind: yaml.SequenceNode}
		for _, child := range cond.Children {
			node, err := encodeCondition(child)
			if err != nil {
				return nil, err
			}
			children.Content = append(children.Content, node)
		}
		return mapping(pair(string(cond.Type), children)), nil
	case ast.ConditionTypeNot:
		if len(cond.Children) != 1 {
			return nil, fmt.Errorf("not condition has %d children, want 1", len(cond.Children))
		}
		child, err := encodeCondition(cond.Children[0])
		if err != nil {
			return nil, err
		}
		return mapping(pair("not", child)), nil
	}

	fields := append(pair("attr", str(cond.Attr)), pair("op", str(string(cond.Operator)))...)
	switch cond.Type {
	case ast.ConditionTypeComparison:
		if cond.Attr2 != "" {
			fields = append(fields, pair("attr2", str(cond.Attr2))...)
		} else {
			fields = append(fields, pair("value", encodeValue(cond.Value))...)
		}
	case ast.ConditionTypeMembership:
		values := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range cond.Values {
			values.Content = append(values.Content, encodeValue(v))
		}
		fields = append(fields, pair("values", values)...)
	case ast.ConditionTypePattern:
		fields = append(fields, pair("pattern", str(cond.Pattern))...)
	case ast.ConditionTypeExistence:
	default:
		return nil, fmt.Errorf("unknown condition type %q", cond.Type)
	}
	return &yaml.Node{Kind: yaml.MappingNode, Content: fields}, nil
}

func encodeAction(action *ast.Action) (*yaml.Node, error) {
	fields := pair("type", str(action.Type))
	if len(action.Params) > 0 {
		keys := make([]string, 0, len(action.Params))
		for k := range action.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range keys {
			params.Content = append(params.Content, pair(k, encodeValue(action.Params[k]))...)
		}
		fields = append(fields, pair("params", params)...)
	}
	return &yaml.Node{Kind: yaml.MappingNode, Content: fields}, nil
}

func encodeValue(v *ast.ValueNode) *yaml.Node {
	if v == nil {
		return scalar("!!null", "null")
	}
	return encodeAny(v.Value)
}

func encodeAny(v any) *yaml.Node {
	switch val := v.(type) {
	case nil:
		return scalar("!!null", "null")
	case string:
		return str(val)
	case bool:
		return scalar("!!bool", strconv.FormatBool(val))
	case int:
		return scalar("!!int", strconv.Itoa(val))
	case int64:
		return scalar("!!int", strconv.FormatInt(val, 10))
	case float64:
		return scalar("!!float", formatFloat(val))
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, item := range val {
			seq.Content = append(seq.Content, encodeAny(item))
		}
		return seq
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range keys {
			m.Content = append(m.Content, pair(k, encodeAny(val[k]))...)
		}
		return m
	default:
		return str(fmt.Sprint(val))
	}
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func str(s string) *yaml.Node {
	return scalar("!!str", s)
}

func pair(key string, value *yaml.Node) []*yaml.Node {
	return []*yaml.Node{str(key), value}
}

func mapping(content []*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Content: content}
}
