package engine

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/verdict/pkg/facts"
)

// Built-in action types registered by NewDefaultRegistry.
const (
	ActionSet       = "set"
	ActionTag       = "tag"
	ActionIncrement = "increment"
	ActionAppend    = "append"
	ActionRemove    = "remove"
	ActionLog       = "log"
)

// DefaultTagAttribute is the list attribute the tag action appends to when
// no attr parameter is given.
const DefaultTagAttribute = "tags"

// NewDefaultRegistry returns a registry with the built-in fact mutation
// actions and a log action writing to logger.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()
	r.MustRegister(ActionSet, HandlerFunc(handleSet))
	r.MustRegister(ActionTag, HandlerFunc(handleTag))
	r.MustRegister(ActionIncrement, HandlerFunc(handleIncrement))
	r.MustRegister(ActionAppend, HandlerFunc(handleAppend))
	r.MustRegister(ActionRemove, HandlerFunc(handleRemove))
	r.MustRegister(ActionLog, &logHandler{logger: logger})
	return r
}

// handleSet stores params.value, or the value of params.from, at params.attr.
func handleSet(_ context.Context, action *ActionSpec, fc *facts.Context) error {
	path, err := action.PathParam("attr")
	if err != nil {
		return err
	}

	value := action.Param("value")
	if from, ok := action.StringParam("from"); ok {
		if action.HasParam("value") {
			return fmt.Errorf("parameters \"value\" and \"from\" are mutually exclusive")
		}
		value = fc.Get(from)
	} else if value.IsAbsent() {
		return fmt.Errorf("parameter \"value\" is required")
	}

	return fc.SetPath(path, value)
}

// handleTag appends params.value to the list at params.attr (default
// "tags") unless an equal element is already present.
func handleTag(_ context.Context, action *ActionSpec, fc *facts.Context) error {
	attr := DefaultTagAttribute
	if s, ok := action.StringParam("attr"); ok {
		attr = s
	}
	path, err := facts.ParsePath(attr)
	if err != nil {
		return err
	}
	tag := action.Param("value")
	if tag.IsAbsent() {
		return fmt.Errorf("parameter \"value\" is required")
	}

	current := fc.Lookup(path)
	if current.IsAbsent() {
		return fc.SetPath(path, facts.List(tag))
	}
	items, ok := current.AsList()
	if !ok {
		return fmt.Errorf("attribute %q is %s, want list", attr, current.Kind())
	}
	for _, item := range items {
		if item.Equal(tag) {
			return nil
		}
	}
	return fc.SetPath(path, facts.List(appendCopy(items, tag)...))
}

// handleIncrement adds params.by (default 1) to the number at params.attr.
// An absent attribute counts as 0. Integer plus integer stays integer and
// fails rather than wrapping on overflow.
func handleIncrement(_ context.Context, action *ActionSpec, fc *facts.Context) error {
	path, err := action.PathParam("attr")
	if err != nil {
		return err
	}
	by := facts.Int(1)
	if action.HasParam("by") {
		by = action.Param("by")
		if !by.Kind().IsNumeric() {
			return fmt.Errorf("parameter \"by\" is %s, want number", by.Kind())
		}
	}

	current := fc.Lookup(path)
	if current.IsAbsent() {
		current = facts.Int(0)
	}
	if !current.Kind().IsNumeric() {
		return fmt.Errorf("attribute %q is %s, want number", path.String(), current.Kind())
	}

	if a, ok := current.AsInt(); ok {
		if b, ok := by.AsInt(); ok {
			sum := a + b
			if (b > 0 && sum < a) || (b < 0 && sum > a) {
				return fmt.Errorf("incrementing %q by %d overflows int64", path.String(), b)
			}
			return fc.SetPath(path, facts.Int(sum))
		}
	}
	a, _ := current.AsNumber()
	b, _ := by.AsNumber()
	return fc.SetPath(path, facts.Double(a+b))
}

// handleAppend appends params.value to the list at params.attr, creating
// the list when absent. Duplicates are kept.
func handleAppend(_ context.Context, action *ActionSpec, fc *facts.Context) error {
	path, err := action.PathParam("attr")
	if err != nil {
		return err
	}
	value := action.Param("value")
	if value.IsAbsent() {
		return fmt.Errorf("parameter \"value\" is required")
	}

	current := fc.Lookup(path)
	if current.IsAbsent() {
		return fc.SetPath(path, facts.List(value))
	}
	items, ok := current.AsList()
	if !ok {
		return fmt.Errorf("attribute %q is %s, want list", path.String(), current.Kind())
	}
	return fc.SetPath(path, facts.List(appendCopy(items, value)...))
}

// handleRemove deletes params.attr. Removing an absent attribute succeeds.
func handleRemove(_ context.Context, action *ActionSpec, fc *facts.Context) error {
	path, err := action.PathParam("attr")
	if err != nil {
		return err
	}
	fc.DeletePath(path)
	return nil
}

type logHandler struct {
	logger *slog.Logger
}

// Handle logs params.message at params.level (default info) together with
// any attributes listed in params.attrs.
func (h *logHandler) Handle(ctx context.Context, action *ActionSpec, fc *facts.Context) error {
	message, ok := action.StringParam("message")
	if !ok {
		message = "rule action"
	}

	level := slog.LevelInfo
	if s, ok := action.StringParam("level"); ok {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("invalid log level %q", s)
		}
	}

	args := []any{"action", action.Type}
	if attrs, ok := action.Param("attrs").AsList(); ok {
		for _, attr := range attrs {
			if name, ok := attr.AsString(); ok {
				args = append(args, name, fc.Get(name).String())
			}
		}
	}

	h.logger.Log(ctx, level, message, args...)
	return nil
}

func appendCopy(items []facts.Value, v facts.Value) []facts.Value {
	out := make([]facts.Value, len(items), len(items)+1)
	copy(out, items)
	return append(out, v)
}
