package engine

import (
	"sort"
)

// orderAgenda sorts matched rules into firing order: higher priority first,
// then lower declaration index. Rule indices are unique within a rule set,
// so the order is total and independent of the input order.
func orderAgenda(rules []*Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Index < rules[j].Index
	})
}

// FiringOrder returns the rules of rs in the order they would fire if all
// matched at once.
func FiringOrder(rs *RuleSet) []*Rule {
	rules := make([]*Rule, len(rs.rules))
	copy(rules, rs.rules)
	orderAgenda(rules)
	return rules
}
