package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ondergetekende/logshipper/action"
	"github.com/ondergetekende/logshipper/message"
)

// MetricsRecorder receives traversal/error observations. It is
// satisfied by *metrics.Collector without this package importing
// metrics, the same pattern message.Dispatcher uses to keep manager
// out of pipeline's import graph.
type MetricsRecorder interface {
	RecordTraversal(pipelineName string, dropped bool, dur time.Duration)
	RecordActionError(pipelineName, actionName string)
}

// boundAction is one step's action handler together with the phase it
// sorts under.
type boundAction struct {
	name    string
	phase   int
	handler action.Handler
}

// Step is one logical group of actions executed in phase order,
// sharing a freshly-reset Context (spec.md §4.3).
type Step struct {
	actions []boundAction
}

// Pipeline is a compiled, ready-to-run sequence of steps (spec.md §4.3).
// It holds no per-message state, so one Pipeline instance is shared and
// run concurrently by every worker that dispatches to it.
type Pipeline struct {
	Name    string
	Steps   []Step
	logger  *slog.Logger
	metrics MetricsRecorder
}

// SetMetrics attaches a MetricsRecorder; nil disables recording. Safe
// to call before the pipeline is shared with workers.
func (p *Pipeline) SetMetrics(m MetricsRecorder) {
	p.metrics = m
}

// Compile builds a Pipeline from a parsed Document's steps, resolving
// each action against registry and sorting by phase (spec.md §4.3:
// "Handlers are sorted by phase (stable sort; ties preserve declaration
// order)").
func Compile(name string, doc *Document, registry *action.Registry, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	steps := make([]Step, len(doc.Steps))
	for i, stepCfg := range doc.Steps {
		actions := make([]boundAction, len(stepCfg.Actions))
		for j, actCfg := range stepCfg.Actions {
			handler, phase, err := registry.Build(actCfg.Name, actCfg.Params)
			if err != nil {
				return nil, err
			}
			actions[j] = boundAction{name: actCfg.Name, phase: phase, handler: handler}
		}

		sort.SliceStable(actions, func(a, b int) bool {
			return actions[a].phase < actions[b].phase
		})
		steps[i] = Step{actions: actions}
	}

	return &Pipeline{Name: name, Steps: steps, logger: logger}, nil
}

// Run executes every step of the pipeline against msg in order, on the
// calling goroutine (spec.md §4.3, §5: "steps and actions execute
// strictly in declared/phase order on one worker"). mctx is the
// traversal's scratchpad; the caller supplies it so call/jump/fork can
// carry the recursion depth across a cross-pipeline dispatch.
//
// A nil return means no action failed; the traversal may still have
// ended early on a DropMessage verdict. A non-nil error
// is always an action-runtime-error (spec.md §7): the message was
// dropped at the point of failure, but the caller (and any other
// in-flight message) is unaffected.
func (p *Pipeline) Run(ctx context.Context, msg message.Message, mctx *message.Context) error {
	start := time.Now()
	dropped := false

	for _, step := range p.Steps {
		mctx.NextStep()

		verdict, err := p.runStep(ctx, step, msg, mctx)
		if err != nil {
			p.logger.Error("action failed, dropping message",
				"pipeline", p.Name, "error", err)
			if p.metrics != nil {
				p.metrics.RecordTraversal(p.Name, true, time.Since(start))
			}
			return err
		}

		if verdict == action.DropMessage {
			dropped = true
			break
		}
		if verdict == action.SkipStep {
			continue
		}
	}

	if p.metrics != nil {
		p.metrics.RecordTraversal(p.Name, dropped, time.Since(start))
	}
	return nil
}

// runStep runs one step's actions in phase order, stopping at the first
// action that doesn't return Continue, or whose template fails with an
// *UnderflowError (spec.md §7: template-underflow leaves the message
// unmutated by that action and the traversal continues to the next
// step, i.e. as if that single action had returned SkipStep).
func (p *Pipeline) runStep(ctx context.Context, step Step, msg message.Message, mctx *message.Context) (action.Result, error) {
	for _, act := range step.actions {
		verdict, err := act.handler(ctx, msg, mctx)
		if err != nil {
			if isUnderflow(err) {
				p.logger.Warn("template underflow, action skipped",
					"pipeline", p.Name, "action", act.name, "error", err)
				return action.SkipStep, nil
			}
			if p.metrics != nil {
				p.metrics.RecordActionError(p.Name, act.name)
			}
			return action.Continue, err
		}
		if verdict != action.Continue {
			return verdict, nil
		}
	}
	return action.Continue, nil
}

// isUnderflow reports whether err is a *template.UnderflowError, tested
// via the Underflow marker method rather than an import of template, so
// the action/template -> pipeline dependency stays one-way.
func isUnderflow(err error) bool {
	_, ok := err.(interface{ Underflow() })
	return ok
}
