package message

import "context"

// MatchResult is the outcome of a single field's regular expression
// search: the span of the overall match plus its groups, both
// positional and named. Index 0 of Backreferences is always the full
// match; 1..K are the numbered capture groups.
type MatchResult struct {
	Start, End int
	Groups     []string          // group 0 (full match) .. group K
	Named      map[string]string // named captures only
}

// Dispatcher is the pipeline manager's view as seen from inside a
// running pipeline: enough surface for the call/jump/fork actions to
// hand a message to another named pipeline. It is an interface (not
// manager.Manager directly) so the message package never imports the
// manager package — the same cycle-breaking role interfaces.Trigger and
// interfaces.PipelineRunner play between the teacher's engine and
// module packages.
type Dispatcher interface {
	// Process runs msg through the named pipeline synchronously,
	// respecting the recursion bound (§4.5, §4.6). depth is the calling
	// chain's current recursion depth (0 for a top-level dispatch); the
	// manager increments it and fails with a recursion-too-deep error
	// once it would exceed 10. It is used by call and jump.
	Process(ctx context.Context, msg Message, pipelineName string, depth int) error

	// ProcessAsync enqueues msg for the named pipeline on the shared
	// worker pool and returns immediately; the enqueued run starts at
	// recursion depth 0. It is used by fork, and by every input's emit
	// shim.
	ProcessAsync(ctx context.Context, msg Message, pipelineName string)
}

// Context is the per-message scratchpad threaded through every action of
// every step of one pipeline traversal (spec.md §3). It is reset at
// every step boundary by NextStep.
type Context struct {
	Manager Dispatcher

	// Depth is this dispatch chain's recursion counter, carried on the
	// call stack rather than as shared mutable state: call/jump pass it
	// to Process, which runs the destination with a fresh Context at
	// depth+1, so depth is naturally per-chain without synchronization.
	Depth int

	// Match is the single MatchResult produced by the most recent
	// match/extract action, set only when that action matched exactly
	// one field. Matches across >1 fields clear Match (and MatchField)
	// even though Matches below is still populated per field.
	Match      *MatchResult
	MatchField *string

	// Backreferences holds the textual captures of Match: index 0 is
	// the full match, 1..K the numbered groups. Only populated in the
	// single-field case.
	Backreferences []string

	// Matches holds the MatchResult for every field a match/extract
	// action examined, keyed by field name — populated whether the
	// match spanned one field or several.
	Matches map[string]*MatchResult
}

// NewContext creates a fresh Context for one message's traversal of one
// pipeline.
func NewContext(manager Dispatcher) *Context {
	return &Context{Manager: manager}
}

// NextStep resets the match-related scratch fields at a step boundary,
// per invariant 3 (spec.md §3): match/matches/match_field/backreferences
// are defined only until the next step.
func (c *Context) NextStep() {
	c.Match = nil
	c.MatchField = nil
	c.Backreferences = nil
	c.Matches = nil
}

