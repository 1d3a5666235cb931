// Package input defines the lifecycle every log source implements
// (files, syslog, subprocess, standard input) and the emit shim that
// stamps mandatory fields before a line reaches a pipeline (spec.md
// §4.4). Grounded on the teacher's Trigger shape
// (`interfaces/trigger.go`: Init/Start/Stop/Configure) kept as a plain
// interface rather than a dependency on the `modular` framework
// (SPEC_FULL.md §B).
package input

import (
	"context"

	"github.com/ondergetekende/logshipper/message"
)

// Emitter is how an input hands a freshly read line (or pre-built
// field set) off to a pipeline. The manager binds this when it starts
// an input, so inputs never import the manager package.
type Emitter func(fields message.Message)

// Input is one running source of log lines. Start launches its worker
// task once; Start must be idempotent (spec.md §4.4: "start() launches
// a worker task once (idempotent)"). Stop signals termination, unblocks
// any pending I/O, and joins the worker before returning.
type Input interface {
	// Start begins reading, emitting every message via emit. It returns
	// once the read loop has launched (typically after spawning a
	// goroutine), not once the input is exhausted.
	Start(ctx context.Context, emit Emitter) error

	// Stop signals the input to terminate and blocks until its worker
	// has exited.
	Stop(ctx context.Context) error
}

// Emit builds a message from fields via message.New, stamping the
// mandatory message/timestamp/hostname fields (spec.md §3 invariant 1),
// and hands it to emit. Every concrete input calls this instead of
// constructing a message.Message directly, so the invariant holds
// regardless of which input produced the line.
func Emit(emit Emitter, fields message.Message) {
	emit(message.New(fields))
}
