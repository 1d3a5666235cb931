// Package stdin implements the standard-input source (spec.md §1,
// original_source/logshipper/stdin.py), the simplest input: read lines
// until EOF and emit each one.
package stdin

import (
	"bufio"
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ondergetekende/logshipper/input"
	"github.com/ondergetekende/logshipper/message"
)

// Input reads newline-delimited text from os.Stdin and emits one
// message per line.
type Input struct {
	running atomic.Bool
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New creates an unstarted stdin input.
func New() *Input {
	return &Input{}
}

// Start launches the read loop once; a second call is a no-op
// (spec.md §4.4: start is idempotent).
func (in *Input) Start(ctx context.Context, emit input.Emitter) error {
	if !in.running.CompareAndSwap(false, true) {
		return nil
	}
	in.stopped = make(chan struct{})

	in.wg.Add(1)
	go in.run(emit)
	return nil
}

func (in *Input) run(emit input.Emitter) {
	defer in.wg.Done()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-in.stopped:
			return
		default:
		}
		input.Emit(emit, message.Message{message.FieldText: scanner.Text()})
	}
}

// Stop signals the read loop to exit at its next opportunity. Standard
// input cannot be asynchronously interrupted mid-read on every
// platform without closing the file descriptor out from under the
// process, so a blocked Scan() call only returns on EOF or process
// exit — the one lifecycle wrinkle this input has, matching the
// original's stdin.py, which has no stop() beyond killing its thread
// (SPEC_FULL.md §C).
func (in *Input) Stop(ctx context.Context) error {
	if !in.running.CompareAndSwap(true, false) {
		return nil
	}
	close(in.stopped)
	in.wg.Wait()
	return nil
}
