package ast

// Document is the root of a parsed rule file.
type Document struct {
	Rules      []*RuleDefinition
	SourceFile string
	Location   Location
}

// GetRule returns the rule with the given name, or nil if not found.
func (d *Document) GetRule(name string) *RuleDefinition {
	for _, rule := range d.Rules {
		if rule.Name == name {
			return rule
		}
	}
	return nil
}

// RuleDefinition is the declarative form of one rule.
// Priority defaults to 0; higher fires first.
type RuleDefinition struct {
	Name        string
	Description string
	Priority    int
	Condition   *ConditionNode
	Actions     []*Action
	Location    Location
}
