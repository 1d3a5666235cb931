package action

import (
	"context"
	"fmt"
	"testing"

	"github.com/ondergetekende/logshipper/message"
)

type recordingDispatcher struct {
	processed      []string
	processedDepth []int
	asyncNames     []string
	failPipeline   string
}

func (d *recordingDispatcher) Process(ctx context.Context, msg message.Message, pipelineName string, depth int) error {
	if pipelineName == d.failPipeline {
		return fmt.Errorf("dispatch to %q failed", pipelineName)
	}
	d.processed = append(d.processed, pipelineName)
	d.processedDepth = append(d.processedDepth, depth)
	return nil
}

func (d *recordingDispatcher) ProcessAsync(ctx context.Context, msg message.Message, pipelineName string) {
	d.asyncNames = append(d.asyncNames, pipelineName)
}

func TestCallDispatchesAndContinues(t *testing.T) {
	h, _, err := newCall("downstream")
	if err != nil {
		t.Fatalf("newCall failed: %v", err)
	}

	disp := &recordingDispatcher{}
	mctx := message.NewContext(disp)
	mctx.Depth = 2

	verdict, err := h(context.Background(), message.Message{"a": 1}, mctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != Continue {
		t.Errorf("verdict = %v, want Continue", verdict)
	}
	if len(disp.processed) != 1 || disp.processed[0] != "downstream" {
		t.Errorf("processed = %v, want [downstream]", disp.processed)
	}
	if disp.processedDepth[0] != 2 {
		t.Errorf("depth passed through = %d, want 2", disp.processedDepth[0])
	}
}

func TestCallFailureSurfacesAsActionError(t *testing.T) {
	h, _, err := newCall("broken")
	if err != nil {
		t.Fatalf("newCall failed: %v", err)
	}

	disp := &recordingDispatcher{failPipeline: "broken"}
	mctx := message.NewContext(disp)

	_, err = h(context.Background(), message.Message{}, mctx)
	if err == nil {
		t.Fatal("expected an error when the destination pipeline fails")
	}
}

func TestJumpDispatchesAndDropsMessage(t *testing.T) {
	h, _, err := newJump("downstream")
	if err != nil {
		t.Fatalf("newJump failed: %v", err)
	}

	disp := &recordingDispatcher{}
	mctx := message.NewContext(disp)

	verdict, err := h(context.Background(), message.Message{}, mctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != DropMessage {
		t.Errorf("verdict = %v, want DropMessage", verdict)
	}
	if len(disp.processed) != 1 || disp.processed[0] != "downstream" {
		t.Errorf("processed = %v, want [downstream]", disp.processed)
	}
}

func TestForkDispatchesAsyncAtDepthZeroAndContinues(t *testing.T) {
	h, _, err := newFork("background")
	if err != nil {
		t.Fatalf("newFork failed: %v", err)
	}

	disp := &recordingDispatcher{}
	mctx := message.NewContext(disp)
	mctx.Depth = 5

	verdict, err := h(context.Background(), message.Message{}, mctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != Continue {
		t.Errorf("verdict = %v, want Continue", verdict)
	}
	if len(disp.asyncNames) != 1 || disp.asyncNames[0] != "background" {
		t.Errorf("asyncNames = %v, want [background]", disp.asyncNames)
	}
}

func TestCallWithoutDispatcherErrors(t *testing.T) {
	h, _, err := newCall("downstream")
	if err != nil {
		t.Fatalf("newCall failed: %v", err)
	}

	mctx := message.NewContext(nil)
	_, err = h(context.Background(), message.Message{}, mctx)
	if err == nil {
		t.Error("expected an error when no dispatcher is bound")
	}
}
