package action

import (
	"context"
	"fmt"

	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/template"
)

// newReplace substitutes the span of a prior single-field match with an
// interpolated template (spec.md §4.2, testable property 7: `match`
// followed by `replace: "{0}"` is the identity). Violating the
// precondition — no prior single-field match in this step — is an
// action-runtime-error (DESIGN.md's resolution of an unstated failure
// mode), not a silent no-op.
func newReplace(params any) (Handler, int, error) {
	tmpl, err := template.Compile(params)
	if err != nil {
		return nil, 0, fmt.Errorf("replace: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, ctx *message.Context) (Result, error) {
		if ctx.MatchField == nil || ctx.Match == nil {
			return Continue, fmt.Errorf("replace: no prior single-field match in this step")
		}

		field := *ctx.MatchField
		mr := ctx.Matches[field]
		if mr == nil {
			mr = ctx.Match
		}

		replacement, err := tmpl.ExecuteString(msg, ctx)
		if err != nil {
			return Continue, err
		}

		text := msg.GetString(field)
		msg[field] = text[:mr.Start] + replacement + text[mr.End:]
		return Continue, nil
	}
	return handler, 0, nil
}
