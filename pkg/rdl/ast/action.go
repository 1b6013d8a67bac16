package ast

// Action is an action invocation attached to a rule. The engine looks up a
// handler by Type and passes Params through unchanged.
type Action struct {
	Type     string
	Params   map[string]*ValueNode
	Location Location
}

// GetParameter returns the parameter value for the given key, or nil if not found.
func (a *Action) GetParameter(key string) *ValueNode {
	return a.Params[key]
}

// HasParameter returns true if the action has a parameter with the given key.
func (a *Action) HasParameter(key string) bool {
	_, ok := a.Params[key]
	return ok
}

// GetStringParameter returns the string value of a parameter.
// Returns empty string if parameter doesn't exist or is not a string.
func (a *Action) GetStringParameter(key string) string {
	if val := a.GetParameter(key); val != nil && val.Type == ValueTypeString {
		if str, ok := val.Value.(string); ok {
			return str
		}
	}
	return ""
}
