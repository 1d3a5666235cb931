package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ondergetekende/logshipper/action"
	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/worker"
)

func writePipeline(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write pipeline %s: %v", name, err)
	}
	return path
}

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	pool := worker.New(worker.DefaultConfig(), nil)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("pool.Start failed: %v", err)
	}
	t.Cleanup(func() { pool.Stop() })

	mgr := New([]string{filepath.Join(dir, "*.yml")}, action.Default, pool, nil)
	return mgr
}

func TestManagerLoadsAndRunsPipeline(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "greet.yml", `
steps:
  - set:
      greeting: "hello {name}"
`)

	mgr := newTestManager(t, dir)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	msg := message.Message{"name": "alice"}
	if err := mgr.Process(context.Background(), msg, "greet", 0); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if msg["greeting"] != "hello alice" {
		t.Errorf("greeting = %v, want \"hello alice\"", msg["greeting"])
	}
}

func TestManagerProcessUnknownPipelineErrors(t *testing.T) {
	dir := t.TempDir()
	mgr := newTestManager(t, dir)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	if err := mgr.Process(context.Background(), message.Message{}, "nope", 0); err == nil {
		t.Error("expected an error dispatching to an unknown pipeline")
	}
}

func TestManagerEnforcesRecursionBound(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "loop.yml", `
steps:
  - call: loop
`)

	mgr := newTestManager(t, dir)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	err := mgr.Process(context.Background(), message.Message{}, "loop", 0)
	if err == nil {
		t.Fatal("expected the self-recursive pipeline to eventually fail with recursion-too-deep")
	}
}

func TestManagerReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writePipeline(t, dir, "reload.yml", `
steps:
  - set:
      version: "1"
`)

	mgr := newTestManager(t, dir)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	msg := message.Message{}
	if err := mgr.Process(context.Background(), msg, "reload", 0); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if msg["version"] != "1" {
		t.Fatalf("version = %v, want 1", msg["version"])
	}

	if err := os.WriteFile(path, []byte("steps:\n  - set:\n      version: \"2\"\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite pipeline: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		msg2 := message.Message{}
		err := mgr.Process(context.Background(), msg2, "reload", 0)
		if err == nil && msg2["version"] == "2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pipeline was not reloaded in time, last version seen: %v", msg2["version"])
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestManagerUnloadsOnFileRemoval(t *testing.T) {
	dir := t.TempDir()
	path := writePipeline(t, dir, "gone.yml", `
steps:
  - drop: {}
`)

	mgr := newTestManager(t, dir)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop(context.Background())

	if err := mgr.Process(context.Background(), message.Message{}, "gone", 0); err != nil {
		t.Fatalf("Process failed before removal: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove pipeline file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		err := mgr.Process(context.Background(), message.Message{}, "gone", 0)
		if err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pipeline was not unloaded in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
