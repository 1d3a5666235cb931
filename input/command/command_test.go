package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ondergetekende/logshipper/message"
)

func collectEmits(t *testing.T, timeout time.Duration, want int) (func(message.Message), func() []string) {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	done := make(chan struct{})
	emit := func(fields message.Message) {
		mu.Lock()
		lines = append(lines, fields[message.FieldText].(string))
		n := len(lines)
		mu.Unlock()
		if n >= want {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	}
	getter := func() []string {
		select {
		case <-done:
		case <-time.After(timeout):
			t.Fatalf("timed out waiting for %d emitted lines", want)
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
	return emit, getter
}

func TestCommandEmitsOneMessagePerLine(t *testing.T) {
	emit, get := collectEmits(t, 5*time.Second, 2)

	in := New(Config{Shell: `printf 'one\ntwo\n'`})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := in.Start(ctx, emit); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer in.Stop(context.Background())

	lines := get()
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("lines = %v, want [one two]", lines)
	}
}

func TestCommandEmitsTrailingFragmentWithoutTrailingSeparator(t *testing.T) {
	emit, get := collectEmits(t, 5*time.Second, 1)

	in := New(Config{Shell: `printf 'no newline at end'`})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := in.Start(ctx, emit); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer in.Stop(context.Background())

	lines := get()
	if len(lines) != 1 || lines[0] != "no newline at end" {
		t.Errorf("lines = %v, want [\"no newline at end\"]", lines)
	}
}

func TestCommandStopIsIdempotentAndJoinsRespawnLoop(t *testing.T) {
	in := New(Config{Shell: "true", Interval: 50 * time.Millisecond})
	ctx := context.Background()

	if err := in.Start(ctx, func(message.Message) {}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 2)
	go func() { done <- in.Stop(context.Background()) }()
	go func() { done <- in.Stop(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Stop failed: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Stop did not return in time")
		}
	}
}
