package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ondergetekende/logshipper/action"
	"github.com/ondergetekende/logshipper/message"
)

type fakeMetrics struct {
	traversals   []string
	dropped      []bool
	actionErrors []string
}

func (f *fakeMetrics) RecordTraversal(pipelineName string, dropped bool, dur time.Duration) {
	f.traversals = append(f.traversals, pipelineName)
	f.dropped = append(f.dropped, dropped)
}

func (f *fakeMetrics) RecordActionError(pipelineName, actionName string) {
	f.actionErrors = append(f.actionErrors, pipelineName+"/"+actionName)
}

func testRegistry() *action.Registry {
	reg := action.NewRegistry()
	reg.Register("set", action.PhaseManipulate, func(params any) (action.Handler, int, error) {
		fields := params.(map[string]any)
		return func(ctx context.Context, msg message.Message, mctx *message.Context) (action.Result, error) {
			for k, v := range fields {
				msg[k] = v
			}
			return action.Continue, nil
		}, 0, nil
	})
	reg.Register("drop", action.PhaseDrop, func(params any) (action.Handler, int, error) {
		return func(ctx context.Context, msg message.Message, mctx *message.Context) (action.Result, error) {
			return action.DropMessage, nil
		}, 0, nil
	})
	reg.Register("fail", action.PhaseManipulate, func(params any) (action.Handler, int, error) {
		return func(ctx context.Context, msg message.Message, mctx *message.Context) (action.Result, error) {
			return action.Continue, errFail
		}, 0, nil
	})
	reg.Register("underflow", action.PhaseMatch, func(params any) (action.Handler, int, error) {
		return func(ctx context.Context, msg message.Message, mctx *message.Context) (action.Result, error) {
			return action.Continue, &underflowErr{}
		}, 0, nil
	})
	return reg
}

type underflowErr struct{}

func (e *underflowErr) Error() string { return "underflow" }
func (e *underflowErr) Underflow()    {}

var errFail = fakeErr("boom")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestRunExecutesStepsInOrder(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{
			{Actions: []ActionConfig{{Name: "set", Params: map[string]any{"a": "1"}}}},
			{Actions: []ActionConfig{{Name: "set", Params: map[string]any{"b": "2"}}}},
		},
	}
	p, err := Compile("test", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	msg := message.Message{}
	mctx := message.NewContext(nil)
	if err := p.Run(context.Background(), msg, mctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if msg["a"] != "1" || msg["b"] != "2" {
		t.Errorf("msg = %v, want a=1 b=2", msg)
	}
}

func TestRunStopsAtDropMessage(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{
			{Actions: []ActionConfig{{Name: "drop"}}},
			{Actions: []ActionConfig{{Name: "set", Params: map[string]any{"never": "set"}}}},
		},
	}
	p, err := Compile("test", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	msg := message.Message{}
	if err := p.Run(context.Background(), msg, message.NewContext(nil)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := msg["never"]; ok {
		t.Error("expected the step after drop to never run")
	}
}

func TestRunReturnsActionErrorAndStopsTraversal(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{
			{Actions: []ActionConfig{{Name: "fail"}}},
			{Actions: []ActionConfig{{Name: "set", Params: map[string]any{"never": "set"}}}},
		},
	}
	p, err := Compile("test", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	msg := message.Message{}
	err = p.Run(context.Background(), msg, message.NewContext(nil))
	if err == nil {
		t.Fatal("expected an action-runtime-error")
	}
	if _, ok := msg["never"]; ok {
		t.Error("expected the pipeline to stop after the failing action")
	}
}

func TestRunTreatsUnderflowAsSkipStepNotError(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{
			{Actions: []ActionConfig{
				{Name: "underflow"},
				{Name: "set", Params: map[string]any{"shouldnotrun": "x"}},
			}},
			{Actions: []ActionConfig{{Name: "set", Params: map[string]any{"nextstep": "ok"}}}},
		},
	}
	p, err := Compile("test", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	msg := message.Message{}
	if err := p.Run(context.Background(), msg, message.NewContext(nil)); err != nil {
		t.Fatalf("expected underflow to be absorbed, got error: %v", err)
	}
	if _, ok := msg["shouldnotrun"]; ok {
		t.Error("expected the action after the underflowing one in the same step to be skipped")
	}
	if msg["nextstep"] != "ok" {
		t.Error("expected the next step to still run after an underflow")
	}
}

func TestCompileSortsActionsByPhaseStably(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{
			{Actions: []ActionConfig{
				{Name: "drop"},
				{Name: "set", Params: map[string]any{"order": "1"}},
			}},
		},
	}
	p, err := Compile("test", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	actions := p.Steps[0].actions
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].name != "set" || actions[1].name != "drop" {
		t.Errorf("expected set (phase %d) before drop (phase %d), got order %s, %s",
			action.PhaseManipulate, action.PhaseDrop, actions[0].name, actions[1].name)
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{{Actions: []ActionConfig{{Name: "drop"}}}},
	}
	p, err := Compile("metered", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	fm := &fakeMetrics{}
	p.SetMetrics(fm)

	if err := p.Run(context.Background(), message.Message{}, message.NewContext(nil)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fm.traversals) != 1 || fm.traversals[0] != "metered" {
		t.Errorf("traversals = %v, want [metered]", fm.traversals)
	}
	if len(fm.dropped) != 1 || !fm.dropped[0] {
		t.Errorf("dropped = %v, want [true]", fm.dropped)
	}
}

func TestRunRecordsActionErrorMetric(t *testing.T) {
	doc := &Document{
		Steps: []StepConfig{{Actions: []ActionConfig{{Name: "fail"}}}},
	}
	p, err := Compile("erroring", doc, testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	fm := &fakeMetrics{}
	p.SetMetrics(fm)

	_ = p.Run(context.Background(), message.Message{}, message.NewContext(nil))

	if len(fm.actionErrors) != 1 || fm.actionErrors[0] != "erroring/fail" {
		t.Errorf("actionErrors = %v, want [erroring/fail]", fm.actionErrors)
	}
}
