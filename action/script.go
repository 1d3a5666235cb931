package action

import (
	"context"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/ondergetekende/logshipper/message"
)

// newScript compiles a jq expression once at load time and runs it
// against a deep-ish copy of the message on every invocation, the
// statically-typed substitute for the original's optional `python`
// scripting hook (spec.md §4.2, §9). The expression receives the whole
// message as its input (`.field` addresses a message field) and must
// produce exactly one object, which becomes the message's new field
// set — mirroring `CompiledJQ.Run`'s compile-once/run-per-message shape.
func newScript(params any) (Handler, int, error) {
	expr, ok := params.(string)
	if !ok {
		return nil, 0, fmt.Errorf("script: parameters must be a jq expression string")
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, 0, fmt.Errorf("script: invalid jq expression %q: %w", expr, err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, 0, fmt.Errorf("script: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		input := map[string]any(msg.Clone())

		iter := code.RunWithContext(goctx, input)
		v, ok := iter.Next()
		if !ok {
			return Continue, fmt.Errorf("script: expression %q produced no result", expr)
		}
		if err, isErr := v.(error); isErr {
			return Continue, fmt.Errorf("script: %w", err)
		}

		result, ok := v.(map[string]any)
		if !ok {
			return Continue, fmt.Errorf("script: expression %q must produce an object, got %T", expr, v)
		}

		for k := range msg {
			delete(msg, k)
		}
		for k, val := range result {
			msg[k] = val
		}

		return Continue, nil
	}
	return handler, 0, nil
}
