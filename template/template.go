// Package template compiles a configuration-time value (scalar,
// sequence, or mapping) into a reusable interpolator, per spec.md §3/§4.1.
// Parsing happens once, at compile time; Execute is a flat walk over the
// already-parsed structure, since interpolation sits on the per-message
// hot path.
package template

import (
	"fmt"

	"github.com/ondergetekende/logshipper/message"
)

// Template is a compiled interpolator. The zero value is not usable;
// construct with Compile.
type Template struct {
	scalar   *scalarTemplate // non-nil for a compiled string/scalar
	sequence []*Template     // non-nil for a compiled sequence
	mapping  map[string]*Template
	literal  any // for non-string scalars (numbers/bool/nil)
}

// Compile compiles a configuration-time value into a Template. Strings
// are parsed for replacement fields; other scalars interpolate to
// themselves; sequences and mappings are compiled element-wise, mapping
// keys stay literal (spec.md §3).
func Compile(value any) (*Template, error) {
	switch v := value.(type) {
	case string:
		st, err := compileString(v)
		if err != nil {
			return nil, err
		}
		if st == nil {
			return &Template{literal: v}, nil
		}
		return &Template{scalar: st}, nil
	case []any:
		seq := make([]*Template, len(v))
		for i, item := range v {
			t, err := Compile(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			seq[i] = t
		}
		return &Template{sequence: seq}, nil
	case map[string]any:
		m := make(map[string]*Template, len(v))
		for k, item := range v {
			t, err := Compile(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = t
		}
		return &Template{mapping: m}, nil
	default:
		return &Template{literal: value}, nil
	}
}

// MustCompile is Compile, panicking on error. Useful for actions whose
// templates are fixed defaults rather than user configuration.
func MustCompile(value any) *Template {
	t, err := Compile(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Execute interpolates the compiled template against a message and
// context, returning the corresponding scalar/sequence/mapping value.
// A string template returns a string; non-string scalars return
// themselves; sequences/mappings return their elementwise-interpolated
// form. An *UnderflowError is returned when a positional reference
// exceeds the available back-references (the caller decides how to
// surface that per spec.md §7).
func (t *Template) Execute(msg message.Message, ctx *message.Context) (any, error) {
	switch {
	case t.scalar != nil:
		return t.scalar.execute(msg, ctx)
	case t.sequence != nil:
		out := make([]any, len(t.sequence))
		for i, item := range t.sequence {
			v, err := item.Execute(msg, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case t.mapping != nil:
		out := make(map[string]any, len(t.mapping))
		for k, item := range t.mapping {
			v, err := item.Execute(msg, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return t.literal, nil
	}
}

// ExecuteString is a convenience for the common case of an
// actions-config string field: it runs Execute and coerces the result
// to a string (non-string templates are not expected here, but are
// formatted with %v rather than rejected).
func (t *Template) ExecuteString(msg message.Message, ctx *message.Context) (string, error) {
	v, err := t.Execute(msg, ctx)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", v), nil
}

// MaxPositionalIndex returns the highest positional back-reference index
// this template (if it is a compiled string) ever reads, or -1 if it
// reads none / is not a string template. Exposed for tests and for
// callers that want to validate a context's back-reference count ahead
// of Execute.
func (t *Template) MaxPositionalIndex() int {
	if t.scalar == nil {
		return -1
	}
	return t.scalar.maxPositional
}
