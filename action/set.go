package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/template"
)

// newSet compiles a field→template mapping and writes each interpolated
// value into the message (spec.md §4.2, testable property 8: setting F
// to "{F}" is a no-op when F is present).
func newSet(params any) (Handler, int, error) {
	fields, ok := params.(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("set: parameters must be a field->template mapping")
	}

	type entry struct {
		field string
		tmpl  *template.Template
	}
	entries := make([]entry, 0, len(fields))
	for field, raw := range fields {
		tmpl, err := template.Compile(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("set: field %q: %w", field, err)
		}
		entries = append(entries, entry{field: field, tmpl: tmpl})
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		for _, e := range entries {
			v, err := e.tmpl.Execute(msg, ctx)
			if err != nil {
				return Continue, err
			}
			msg[e.field] = v
		}
		return Continue, nil
	}
	return handler, 0, nil
}

// newUnset removes the named fields if present, silently (spec.md
// §4.2). Parameters may be a sequence of names or a comma-separated
// string.
func newUnset(params any) (Handler, int, error) {
	var fields []string
	switch v := params.(type) {
	case string:
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				fields = append(fields, f)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				fields = append(fields, s)
			}
		}
	default:
		return nil, 0, fmt.Errorf("unset: parameters must be a list or comma-separated string of field names")
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		for _, f := range fields {
			delete(msg, f)
		}
		return Continue, nil
	}
	return handler, 0, nil
}
