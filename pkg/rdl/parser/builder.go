package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/verdict/pkg/rdl/ast"
	rdlErrors "mercator-hq/verdict/pkg/rdl/errors"
)

var (
	documentFields = []string{"rules"}
	ruleFields     = []string{"name", "description", "priority", "condition", "actions"}
	leafFields     = []string{"attr", "op", "value", "attr2", "values", "pattern"}
	actionFields   = []string{"type", "params"}
)

// builder constructs AST nodes from a YAML node tree. It keeps going after
// an error so that one pass reports every structural problem in the file.
type builder struct {
	sourcePath string
	maxDepth   int
	errors     *rdlErrors.ErrorList
}

func newBuilder(sourcePath string, maxDepth int) *builder {
	return &builder{
		sourcePath: sourcePath,
		maxDepth:   maxDepth,
		errors:     &rdlErrors.ErrorList{},
	}
}

func (b *builder) loc(node *yaml.Node) ast.Location {
	if node == nil {
		return ast.Location{File: b.sourcePath}
	}
	return ast.Location{File: b.sourcePath, Line: node.Line, Column: node.Column}
}

func (b *builder) structural(node *yaml.Node, format string, args ...any) {
	b.errors.Add(rdlErrors.KindStructure, b.loc(node), fmt.Sprintf(format, args...), "")
}

func (b *builder) unknownField(key *yaml.Node, where string, valid []string) {
	b.errors.Add(rdlErrors.KindStructure, b.loc(key),
		fmt.Sprintf("unknown field %q in %s", key.Value, where),
		rdlErrors.SuggestFieldName(key.Value, valid))
}

// buildDocument transforms the root node into an ast.Document. The root is
// either a mapping with a "rules" key or a bare sequence of rules.
func (b *builder) buildDocument(root *yaml.Node) (*ast.Document, error) {
	doc := &ast.Document{
		SourceFile: b.sourcePath,
		Location:   ast.Location{File: b.sourcePath, Line: 1, Column: 1},
	}

	node := root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			b.errors.Add(rdlErrors.KindStructure, doc.Location,
				"document is empty",
				rdlErrors.SuggestMissingField("rules", "[...]"))
			return nil, b.errors.Err()
		}
		node = node.Content[0]
	}
	node = resolveAlias(node)

	var rulesNode *yaml.Node
	switch node.Kind {
	case yaml.MappingNode:
		for _, pair := range mappingPairs(node) {
			switch pair.key.Value {
			case "rules":
				rulesNode = pair.value
			default:
				b.unknownField(pair.key, "document", documentFields)
			}
		}
		if rulesNode == nil {
			b.errors.Add(rdlErrors.KindStructure, b.loc(node),
				"missing required field \"rules\"",
				rdlErrors.SuggestMissingField("rules", "[...]"))
			return nil, b.errors.Err()
		}
	case yaml.SequenceNode:
		rulesNode = node
	default:
		b.structural(node, "document must be a mapping with a \"rules\" field, got %s", kindName(node))
		return nil, b.errors.Err()
	}

	if rulesNode.Kind != yaml.SequenceNode {
		b.structural(rulesNode, "\"rules\" must be a sequence, got %s", kindName(rulesNode))
		return nil, b.errors.Err()
	}

	doc.Rules = make([]*ast.RuleDefinition, 0, len(rulesNode.Content))
	for i, item := range rulesNode.Content {
		if rule := b.buildRule(resolveAlias(item), i); rule != nil {
			doc.Rules = append(doc.Rules, rule)
		}
	}

	if err := b.errors.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *builder) buildRule(node *yaml.Node, index int) *ast.RuleDefinition {
	if node.Kind != yaml.MappingNode {
		b.structural(node, "rule %d must be a mapping, got %s", index, kindName(node))
		return nil
	}

	rule := &ast.RuleDefinition{Location: b.loc(node)}
	var hasCondition bool

	for _, pair := range mappingPairs(node) {
		switch pair.key.Value {
		case "name":
			rule.Name, _ = b.stringField(pair.value, "name")
		case "description":
			rule.Description, _ = b.stringField(pair.value, "description")
		case "priority":
			rule.Priority = b.intField(pair.value, "priority")
		case "condition":
			hasCondition = true
			rule.Condition = b.buildCondition(pair.value, 1)
		case "actions":
			rule.Actions = b.buildActions(pair.value)
		default:
			b.unknownField(pair.key, fmt.Sprintf("rule %d", index), ruleFields)
		}
	}

	if !hasCondition {
		b.errors.Add(rdlErrors.KindStructure, rule.Location,
			fmt.Sprintf("rule %d (%q) has no condition", index, rule.Name),
			rdlErrors.SuggestMissingField("condition", "{attr: ..., op: ..., value: ...}"))
	}

	return rule
}

// buildCondition builds one condition node. depth counts the current
// nesting level starting at 1.
func (b *builder) buildCondition(node *yaml.Node, depth int) *ast.ConditionNode {
	node = resolveAlias(node)
	if depth > b.maxDepth {
		b.structural(node, "condition nesting exceeds maximum depth %d", b.maxDepth)
		return nil
	}

	switch node.Kind {
	case yaml.SequenceNode:
		// A bare list is shorthand for all.
		return b.buildLogical(ast.ConditionTypeAll, node, node, depth)
	case yaml.MappingNode:
	default:
		b.structural(node, "condition must be a mapping, got %s", kindName(node))
		return nil
	}

	pairs := mappingPairs(node)
	for _, pair := range pairs {
		switch pair.key.Value {
		case "all", "any", "not":
			if len(pairs) != 1 {
				b.structural(pair.key, "%q must be the only field of its condition", pair.key.Value)
				return nil
			}
			if pair.key.Value == "not" {
				child := b.buildCondition(pair.value, depth+1)
				if child == nil {
					return nil
				}
				return &ast.ConditionNode{
					Type:     ast.ConditionTypeNot,
					Children: []*ast.ConditionNode{child},
					Location: b.loc(node),
				}
			}
			return b.buildLogical(ast.ConditionType(pair.key.Value), node, pair.value, depth)
		}
	}

	return b.buildLeaf(node, pairs)
}

func (b *builder) buildLogical(condType ast.ConditionType, node, children *yaml.Node, depth int) *ast.ConditionNode {
	if children.Kind != yaml.SequenceNode {
		b.structural(children, "%q expects a sequence of conditions, got %s", condType, kindName(children))
		return nil
	}
	cond := &ast.ConditionNode{
		Type:     condType,
		Children: make([]*ast.ConditionNode, 0, len(children.Content)),
		Location: b.loc(node),
	}
	ok := true
	for _, item := range children.Content {
		child := b.buildCondition(item, depth+1)
		if child == nil {
			ok = false
			continue
		}
		cond.Children = append(cond.Children, child)
	}
	if !ok {
		return nil
	}
	return cond
}

func (b *builder) buildLeaf(node *yaml.Node, pairs []mappingPair) *ast.ConditionNode {
	cond := &ast.ConditionNode{Location: b.loc(node)}
	fields := make(map[string]*yaml.Node, len(pairs))
	keys := make(map[string]*yaml.Node, len(pairs))
	valid := true

	for _, pair := range pairs {
		switch pair.key.Value {
		case "attr", "op", "value", "attr2", "values", "pattern":
			fields[pair.key.Value] = pair.value
			keys[pair.key.Value] = pair.key
		default:
			b.unknownField(pair.key, "condition", leafFields)
			valid = false
		}
	}

	attrNode, ok := fields["attr"]
	if !ok {
		b.errors.Add(rdlErrors.KindStructure, cond.Location,
			"condition has no \"attr\" field",
			"Use all, any, not, or a predicate {attr, op, ...}")
		return nil
	}
	cond.Attr, _ = b.stringField(attrNode, "attr")

	opNode, ok := fields["op"]
	if !ok {
		b.errors.Add(rdlErrors.KindStructure, cond.Location,
			fmt.Sprintf("condition on %q has no \"op\" field", cond.Attr),
			rdlErrors.SuggestMissingField("op", "eq"))
		return nil
	}
	op, _ := b.stringField(opNode, "op")
	cond.Operator = ast.Operator(op)
	cond.Type = cond.Operator.ConditionType()
	if cond.Type == "" {
		b.errors.Add(rdlErrors.KindStructure, b.loc(opNode),
			fmt.Sprintf("unknown operator %q", op),
			rdlErrors.SuggestOperator(op, operatorNames()))
		return nil
	}

	allowed := map[ast.ConditionType][]string{
		ast.ConditionTypeComparison: {"value", "attr2"},
		ast.ConditionTypeMembership: {"values"},
		ast.ConditionTypePattern:    {"pattern"},
		ast.ConditionTypeExistence:  {},
	}[cond.Type]
	for _, operand := range []string{"value", "attr2", "values", "pattern"} {
		if _, present := fields[operand]; present && !contains(allowed, operand) {
			b.structural(keys[operand], "field %q is not allowed with operator %q", operand, op)
			valid = false
		}
	}

	switch cond.Type {
	case ast.ConditionTypeComparison:
		valueNode, hasValue := fields["value"]
		attr2Node, hasAttr2 := fields["attr2"]
		switch {
		case hasValue && hasAttr2:
			b.structural(node, "comparison on %q must have either \"value\" or \"attr2\", not both", cond.Attr)
			valid = false
		case hasValue:
			cond.Value = b.buildValue(valueNode)
		case hasAttr2:
			cond.Attr2, _ = b.stringField(attr2Node, "attr2")
		default:
			b.errors.Add(rdlErrors.KindStructure, cond.Location,
				fmt.Sprintf("comparison on %q has no operand", cond.Attr),
				rdlErrors.SuggestMissingField("value", "..."))
			valid = false
		}
	case ast.ConditionTypeMembership:
		valuesNode, ok := fields["values"]
		if !ok {
			b.errors.Add(rdlErrors.KindStructure, cond.Location,
				fmt.Sprintf("operator %q on %q requires \"values\"", op, cond.Attr),
				rdlErrors.SuggestMissingField("values", "[...]"))
			valid = false
			break
		}
		if valuesNode.Kind != yaml.SequenceNode {
			b.structural(valuesNode, "\"values\" must be a sequence, got %s", kindName(valuesNode))
			valid = false
			break
		}
		cond.Values = make([]*ast.ValueNode, 0, len(valuesNode.Content))
		for _, item := range valuesNode.Content {
			cond.Values = append(cond.Values, b.buildValue(resolveAlias(item)))
		}
	case ast.ConditionTypePattern:
		patternNode, ok := fields["pattern"]
		if !ok {
			b.errors.Add(rdlErrors.KindStructure, cond.Location,
				fmt.Sprintf("operator %q on %q requires \"pattern\"", op, cond.Attr),
				rdlErrors.SuggestMissingField("pattern", "\"^a.*\""))
			valid = false
			break
		}
		cond.Pattern, _ = b.stringField(patternNode, "pattern")
	}

	if !valid {
		return nil
	}
	return cond
}

func (b *builder) buildActions(node *yaml.Node) []*ast.Action {
	if node.Kind != yaml.SequenceNode {
		b.structural(node, "\"actions\" must be a sequence, got %s", kindName(node))
		return nil
	}
	actions := make([]*ast.Action, 0, len(node.Content))
	for _, item := range node.Content {
		if action := b.buildAction(resolveAlias(item)); action != nil {
			actions = append(actions, action)
		}
	}
	return actions
}

func (b *builder) buildAction(node *yaml.Node) *ast.Action {
	if node.Kind != yaml.MappingNode {
		b.structural(node, "action must be a mapping, got %s", kindName(node))
		return nil
	}

	action := &ast.Action{
		Params:   make(map[string]*ast.ValueNode),
		Location: b.loc(node),
	}
	var hasType bool

	for _, pair := range mappingPairs(node) {
		switch pair.key.Value {
		case "type":
			hasType = true
			action.Type, _ = b.stringField(pair.value, "type")
		case "params":
			if pair.value.Kind == yaml.ScalarNode && pair.value.Tag == "!!null" {
				continue
			}
			if pair.value.Kind != yaml.MappingNode {
				b.structural(pair.value, "\"params\" must be a mapping, got %s", kindName(pair.value))
				continue
			}
			for _, param := range mappingPairs(pair.value) {
				action.Params[param.key.Value] = b.buildValue(param.value)
			}
		default:
			b.unknownField(pair.key, "action", actionFields)
		}
	}

	if !hasType {
		b.errors.Add(rdlErrors.KindStructure, action.Location,
			"action has no \"type\" field",
			rdlErrors.SuggestMissingField("type", "tag"))
		return nil
	}
	return action
}

// buildValue converts a node into a literal. Numbers keep their integer or
// floating point form.
func (b *builder) buildValue(node *yaml.Node) *ast.ValueNode {
	node = resolveAlias(node)
	value := &ast.ValueNode{Location: b.loc(node)}

	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			value.Type = ast.ValueTypeNull
		case "!!bool":
			var v bool
			if err := node.Decode(&v); err != nil {
				b.structural(node, "invalid boolean %q: %v", node.Value, err)
			}
			value.Type, value.Value = ast.ValueTypeBool, v
		case "!!int":
			v, err := parseInt(node)
			if err != nil {
				b.structural(node, "invalid integer %q: %v", node.Value, err)
			}
			value.Type, value.Value = ast.ValueTypeInt, v
		case "!!float":
			var v float64
			if err := node.Decode(&v); err != nil {
				b.structural(node, "invalid number %q: %v", node.Value, err)
			}
			value.Type, value.Value = ast.ValueTypeDouble, v
		default:
			value.Type, value.Value = ast.ValueTypeString, node.Value
		}
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			items = append(items, b.buildValue(item).Value)
		}
		value.Type, value.Value = ast.ValueTypeList, items
	case yaml.MappingNode:
		fields := make(map[string]any, len(node.Content)/2)
		for _, pair := range mappingPairs(node) {
			fields[pair.key.Value] = b.buildValue(pair.value).Value
		}
		value.Type, value.Value = ast.ValueTypeObject, fields
	default:
		b.structural(node, "unsupported value of kind %s", kindName(node))
		value.Type = ast.ValueTypeNull
	}
	return value
}

func (b *builder) stringField(node *yaml.Node, field string) (string, bool) {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		b.structural(node, "%q must be a string, got %s", field, kindName(node))
		return "", false
	}
	return node.Value, true
}

func (b *builder) intField(node *yaml.Node, field string) int {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!int" {
		b.structural(node, "%q must be an integer, got %s", field, kindName(node))
		return 0
	}
	v, err := parseInt(node)
	if err != nil || v > math.MaxInt32 || v < math.MinInt32 {
		b.structural(node, "%q is out of range: %s", field, node.Value)
		return 0
	}
	return int(v)
}

func parseInt(node *yaml.Node) (int64, error) {
	var v int64
	if err := node.Decode(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func operatorNames() []string {
	names := make([]string, len(ast.Operators))
	for i, op := range ast.Operators {
		names[i] = string(op)
	}
	return names
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// formatFloat renders f so that it reads back as a floating point number.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
