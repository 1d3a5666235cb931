package tail

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ondergetekende/logshipper/message"
)

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) emit(fields message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fields[message.FieldText].(string))
}

func (c *lineCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func waitForLines(t *testing.T, c *lineCollector, n int, timeout time.Duration) []string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if lines := c.snapshot(); len(lines) >= n {
			return lines
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %v", n, c.snapshot())
	return nil
}

func TestTailFollowsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("existing line\n"), 0o644); err != nil {
		t.Fatalf("failed to seed log file: %v", err)
	}

	collector := &lineCollector{}
	in := New(Config{Globs: []string{filepath.Join(dir, "*.log")}})
	if err := in.Start(context.Background(), collector.emit); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer in.Stop(context.Background())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to open log file for append: %v", err)
	}
	if _, err := f.WriteString("new line one\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	lines := waitForLines(t, collector, 1, 5*time.Second)
	if lines[0] != "new line one" {
		t.Errorf("lines = %v, want [\"new line one\"]", lines)
	}
}

func TestTailDiscoversNewlyCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	collector := &lineCollector{}
	in := New(Config{Globs: []string{filepath.Join(dir, "*.log")}})
	if err := in.Start(context.Background(), collector.emit); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer in.Stop(context.Background())

	path := filepath.Join(dir, "created.log")
	if err := os.WriteFile(path, []byte("first\n"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	lines := waitForLines(t, collector, 1, 5*time.Second)
	if lines[0] != "first" {
		t.Errorf("lines = %v, want [first]", lines)
	}
}
