// Package action implements the action registry and the fixed set of
// actions a step can be built from (spec.md §4.2): compiling a step's
// declared action blocks into phase-annotated handlers that a pipeline
// runs against one message at a time.
package action

import (
	"context"

	"github.com/ondergetekende/logshipper/message"
)

// Result is a handler's verdict on how its step, and the message's
// traversal of the surrounding pipeline, should continue.
type Result int

const (
	// Continue means carry on to the next action in the step.
	Continue Result = iota
	// SkipStep abandons the remaining actions in the current step, but
	// the pipeline carries on with the next step.
	SkipStep
	// DropMessage ends the message's traversal of this pipeline
	// entirely; no further steps run.
	DropMessage
)

// Phase buckets actions within a step into a deterministic execution
// order (low runs first), per spec.md §4.3.
const (
	PhaseMatch      = 10
	PhaseManipulate = 20
	PhaseForward    = 30
	PhaseDrop       = 40
)

// Handler examines and/or mutates one message on behalf of a single
// configured action instance. ctx carries cancellation for the blocking
// actions (call, jump, and any sink action doing network I/O); mctx is
// the per-traversal match/dispatch scratchpad (spec.md §3).
type Handler func(ctx context.Context, msg message.Message, mctx *message.Context) (Result, error)

// Factory builds a Handler from an action's declarative parameters,
// decoded from YAML into params (a scalar, []any, or map[string]any
// depending on what the action expects). The returned phase overrides
// the action's registered default when non-zero.
type Factory func(params any) (handler Handler, phase int, err error)
