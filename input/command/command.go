// Package command implements the subprocess input: spawn a command,
// stream its stdout/stderr as messages, and respawn on exit at a
// configured pace (spec.md §4.4.3, original_source/test/test_command.py).
package command

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ondergetekende/logshipper/input"
	"github.com/ondergetekende/logshipper/message"
)

// Config configures one Command input.
type Config struct {
	// Argv is the argv-form command. Mutually exclusive with Shell.
	Argv []string
	// Shell is the shell-form command line, run via "sh -c". Mutually
	// exclusive with Argv.
	Shell string
	// Separator splits the child's combined output into messages.
	// Defaults to "\n".
	Separator string
	// Interval is the minimum time between successive spawns; the
	// runner sleeps interval-minus-elapsed before respawning (spec.md
	// §4.4.3). Zero means the command runs once and is not respawned.
	Interval time.Duration
	// Env holds overrides merged onto the clean base environment
	// (only LC_ALL=C, spec.md §6) the child inherits.
	Env map[string]string
}

// Input runs Config's command, respawning it until Stop is called.
type Input struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New builds an unstarted command input.
func New(cfg Config) *Input {
	if cfg.Separator == "" {
		cfg.Separator = "\n"
	}
	return &Input{cfg: cfg}
}

// Start launches the respawn loop once; a second call is a no-op.
func (in *Input) Start(ctx context.Context, emit input.Emitter) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.running {
		return nil
	}
	in.running = true

	runCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.done = make(chan struct{})

	go in.run(runCtx, emit)
	return nil
}

// Stop terminates the in-flight child (if any) and waits for the
// respawn loop to exit.
func (in *Input) Stop(ctx context.Context) error {
	in.mu.Lock()
	if !in.running {
		in.mu.Unlock()
		return nil
	}
	in.running = false
	cancel := in.cancel
	done := in.done
	in.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (in *Input) run(ctx context.Context, emit input.Emitter) {
	defer close(in.done)

	var limiter *rate.Limiter
	if in.cfg.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(in.cfg.Interval), 1)
	}

	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		in.spawnOnce(ctx, emit)

		if limiter == nil {
			return
		}
	}
}

// spawnOnce runs the child to completion (or until ctx is cancelled),
// emitting one message per separator-delimited piece of its combined
// stdout/stderr, plus any trailing partial fragment on exit (spec.md
// §4.4.3).
func (in *Input) spawnOnce(ctx context.Context, emit input.Emitter) {
	var cmd *exec.Cmd
	if len(in.cfg.Argv) > 0 {
		cmd = exec.CommandContext(ctx, in.cfg.Argv[0], in.cfg.Argv[1:]...)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", in.cfg.Shell)
	}
	cmd.Env = cleanEnv(in.cfg.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return
	}

	if err := cmd.Start(); err != nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); streamSeparated(stdout, in.cfg.Separator, emit) }()
	go func() { defer wg.Done(); streamSeparated(stderr, in.cfg.Separator, emit) }()
	wg.Wait()

	_ = cmd.Wait()
}

// streamSeparated reads r to EOF, splitting on sep and emitting one
// message per piece; the final, separator-less fragment (if any) is
// emitted too once r is exhausted (spec.md §4.4.3: "a trailing partial
// fragment is emitted on process termination").
func streamSeparated(r io.Reader, sep string, emit input.Emitter) {
	reader := bufio.NewReader(r)
	var buf bytes.Buffer
	sepBytes := []byte(sep)

	for {
		b, err := reader.ReadByte()
		if err != nil {
			if buf.Len() > 0 {
				input.Emit(emit, message.Message{message.FieldText: buf.String()})
			}
			return
		}
		buf.WriteByte(b)
		if bytes.HasSuffix(buf.Bytes(), sepBytes) {
			text := strings.TrimSuffix(buf.String(), sep)
			input.Emit(emit, message.Message{message.FieldText: text})
			buf.Reset()
		}
	}
}

// cleanEnv builds the child's environment: only LC_ALL=C, extended with
// user overrides (spec.md §6, original_source/logshipper/cmd.py). It
// deliberately does not inherit the daemon's own environment.
func cleanEnv(overrides map[string]string) []string {
	env := []string{"LC_ALL=C"}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
