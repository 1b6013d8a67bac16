package facts

import (
	"errors"
	"fmt"
)

// ErrNotObject is returned by Set when a path traverses an existing value that
// is not an object.
var ErrNotObject = errors.New("path traverses a non-object value")

// Context holds the facts for a single evaluation run.
type Context struct {
	root map[string]Value
}

// New returns an empty fact context.
func New() *Context {
	return &Context{root: make(map[string]Value)}
}

// FromMap builds a context from plain Go values, typically decoded JSON or
// YAML. Keys are top-level attribute names; nested maps become objects.
func FromMap(m map[string]any) (*Context, error) {
	c := New()
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", k, err)
		}
		if v.IsAbsent() {
			continue
		}
		c.root[k] = v
	}
	return c, nil
}

// Get resolves a dotted path. Invalid paths resolve to the absent value.
func (c *Context) Get(path string) Value {
	p, err := ParsePath(path)
	if err != nil {
		return Absent()
	}
	return p.resolve(c.root)
}

// Lookup resolves a pre-parsed path.
func (c *Context) Lookup(p Path) Value {
	if len(p) == 0 {
		return Absent()
	}
	return p.resolve(c.root)
}

// Has reports whether path resolves to a present value.
func (c *Context) Has(path string) bool {
	return !c.Get(path).IsAbsent()
}

// Set stores a deep copy of v at path, creating intermediate objects as
// needed. Setting the absent value deletes the attribute.
func (c *Context) Set(path string, v Value) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	return c.SetPath(p, v)
}

// SetPath is Set for a pre-parsed path.
func (c *Context) SetPath(p Path, v Value) error {
	if len(p) == 0 {
		return fmt.Errorf("empty attribute path")
	}
	if v.IsAbsent() {
		c.DeletePath(p)
		return nil
	}

	current := c.root
	for i, segment := range p[:len(p)-1] {
		next, ok := current[segment]
		if !ok {
			child := make(map[string]Value)
			current[segment] = Object(child)
			current = child
			continue
		}
		fields, ok := next.AsObject()
		if !ok {
			return fmt.Errorf("%w: %q is %s", ErrNotObject, Path(p[:i+1]).String(), next.Kind())
		}
		current = fields
	}
	current[p[len(p)-1]] = v.Clone()
	return nil
}

// Delete removes the attribute at path and reports whether it existed.
func (c *Context) Delete(path string) bool {
	p, err := ParsePath(path)
	if err != nil {
		return false
	}
	return c.DeletePath(p)
}

// DeletePath is Delete for a pre-parsed path.
func (c *Context) DeletePath(p Path) bool {
	if len(p) == 0 {
		return false
	}
	current := c.root
	for _, segment := range p[:len(p)-1] {
		next, ok := current[segment]
		if !ok {
			return false
		}
		fields, ok := next.AsObject()
		if !ok {
			return false
		}
		current = fields
	}
	last := p[len(p)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}

// Keys returns the top-level attribute names.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.root))
	for k := range c.root {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of top-level attributes.
func (c *Context) Len() int {
	return len(c.root)
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	return &Context{root: cloneFields(c.root)}
}

// ToMap converts the context back into plain Go values.
func (c *Context) ToMap() map[string]any {
	out := make(map[string]any, len(c.root))
	for k, v := range c.root {
		out[k] = v.Interface()
	}
	return out
}

// Value returns the whole context as an object value.
func (c *Context) Value() Value {
	return Object(c.root)
}

// String renders the context with sorted keys.
func (c *Context) String() string {
	return Object(c.root).String()
}
