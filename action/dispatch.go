package action

import (
	"context"
	"fmt"

	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/template"
)

// compilePipelineNameTemplate accepts a bare pipeline name or a template
// string that interpolates to one, for call/jump/fork (spec.md §4.2).
func compilePipelineNameTemplate(params any) (*template.Template, error) {
	name, ok := params.(string)
	if !ok {
		return nil, fmt.Errorf("parameters must be the destination pipeline's name")
	}
	return template.Compile(name)
}

// newCall dispatches a copy of the message to another pipeline
// synchronously and continues the current pipeline regardless of the
// destination's outcome path; a dispatch failure (recursion-too-deep,
// unknown pipeline) surfaces as this action's own error, which the
// executor treats as action-runtime-error (spec.md §7).
func newCall(params any) (Handler, int, error) {
	nameTmpl, err := compilePipelineNameTemplate(params)
	if err != nil {
		return nil, 0, fmt.Errorf("call: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		name, err := nameTmpl.ExecuteString(msg, mctx)
		if err != nil {
			return Continue, err
		}
		if mctx.Manager == nil {
			return Continue, fmt.Errorf("call: no dispatcher bound to this pipeline's context")
		}
		if err := mctx.Manager.Process(goctx, msg.Clone(), name, mctx.Depth); err != nil {
			return Continue, fmt.Errorf("call %q: %w", name, err)
		}
		return Continue, nil
	}
	return handler, 0, nil
}

// newJump dispatches the current message to another pipeline
// synchronously and ends this pipeline's traversal once the dispatch
// returns (spec.md §4.2). A dispatch failure is this action's error,
// still ending the current traversal via action-runtime-error.
func newJump(params any) (Handler, int, error) {
	nameTmpl, err := compilePipelineNameTemplate(params)
	if err != nil {
		return nil, 0, fmt.Errorf("jump: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		name, err := nameTmpl.ExecuteString(msg, mctx)
		if err != nil {
			return Continue, err
		}
		if mctx.Manager == nil {
			return Continue, fmt.Errorf("jump: no dispatcher bound to this pipeline's context")
		}
		if err := mctx.Manager.Process(goctx, msg, name, mctx.Depth); err != nil {
			return Continue, fmt.Errorf("jump %q: %w", name, err)
		}
		return DropMessage, nil
	}
	return handler, 0, nil
}

// newFork dispatches a copy of the message to another pipeline
// asynchronously on the shared worker pool and continues the current
// pipeline immediately (spec.md §4.2). The forked traversal starts at
// recursion depth 0, per ProcessAsync's contract.
func newFork(params any) (Handler, int, error) {
	nameTmpl, err := compilePipelineNameTemplate(params)
	if err != nil {
		return nil, 0, fmt.Errorf("fork: %w", err)
	}

	handler := func(goctx context.Context, msg message.Message, mctx *message.Context) (Result, error) {
		name, err := nameTmpl.ExecuteString(msg, mctx)
		if err != nil {
			return Continue, err
		}
		if mctx.Manager == nil {
			return Continue, fmt.Errorf("fork: no dispatcher bound to this pipeline's context")
		}
		mctx.Manager.ProcessAsync(goctx, msg.Clone(), name)
		return Continue, nil
	}
	return handler, 0, nil
}
