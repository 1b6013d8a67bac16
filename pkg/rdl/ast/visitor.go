package ast

// Visitor is called for each node during Walk. Returning an error stops the
// traversal.
type Visitor interface {
	VisitRule(*RuleDefinition) error
	VisitCondition(*ConditionNode) error
	VisitAction(*Action) error
}

// Walk traverses every rule of the document in declaration order, visiting
// the condition tree depth-first before the actions.
func Walk(doc *Document, visitor Visitor) error {
	for _, rule := range doc.Rules {
		if err := visitor.VisitRule(rule); err != nil {
			return err
		}
		if rule.Condition != nil {
			if err := walkCondition(rule.Condition, visitor); err != nil {
				return err
			}
		}
		for _, action := range rule.Actions {
			if err := visitor.VisitAction(action); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkCondition(cond *ConditionNode, visitor Visitor) error {
	if err := visitor.VisitCondition(cond); err != nil {
		return err
	}
	for _, child := range cond.Children {
		if err := walkCondition(child, visitor); err != nil {
			return err
		}
	}
	return nil
}

// Summary lists what a document references. It is produced by Summarize.
type Summary struct {
	Rules       int
	Conditions  int
	Attributes  []string
	ActionTypes []string
}

type summaryVisitor struct {
	summary    Summary
	attrSeen   map[string]bool
	actionSeen map[string]bool
}

func (s *summaryVisitor) VisitRule(*RuleDefinition) error {
	s.summary.Rules++
	return nil
}

func (s *summaryVisitor) VisitCondition(c *ConditionNode) error {
	s.summary.Conditions++
	for _, attr := range []string{c.Attr, c.Attr2} {
		if attr != "" && !s.attrSeen[attr] {
			s.attrSeen[attr] = true
			s.summary.Attributes = append(s.summary.Attributes, attr)
		}
	}
	return nil
}

func (s *summaryVisitor) VisitAction(a *Action) error {
	if !s.actionSeen[a.Type] {
		s.actionSeen[a.Type] = true
		s.summary.ActionTypes = append(s.summary.ActionTypes, a.Type)
	}
	return nil
}

// Summarize collects the attributes and action types referenced by doc, in
// first-seen order.
func Summarize(doc *Document) Summary {
	v := &summaryVisitor{attrSeen: map[string]bool{}, actionSeen: map[string]bool{}}
	_ = Walk(doc, v)
	return v.summary
}
