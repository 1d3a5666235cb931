// Package manager owns the set of loaded pipelines, reloads them on
// filesystem changes, and dispatches messages to them, enforcing the
// cross-pipeline recursion bound (spec.md §4.5). Grounded on the
// teacher's config.FileSource/ConfigWatcher pair (hash-based change
// detection, directory-level fsnotify watch for atomic saves) and
// original_source/logshipper/pipeline.py's PipelineManager (glob
// enumeration, name = basename without extension, reload-in-place).
package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ondergetekende/logshipper/action"
	"github.com/ondergetekende/logshipper/input"
	"github.com/ondergetekende/logshipper/message"
	"github.com/ondergetekende/logshipper/pipeline"
	"github.com/ondergetekende/logshipper/worker"
)

// MetricsRecorder is implemented by *metrics.Collector; kept as a
// narrow interface here for the same reason pipeline.MetricsRecorder
// exists, so manager doesn't need to import metrics.
type MetricsRecorder interface {
	pipeline.MetricsRecorder
	SetPipelinesLoaded(n int)
}

// maxDepth is the cross-pipeline dispatch recursion bound (spec.md
// §4.5: "if it exceeds 10, fails with recursion-too-deep").
const maxDepth = 10

// loadedPipeline bundles a compiled pipeline with its running inputs
// and the content hash used to skip spurious reloads.
type loadedPipeline struct {
	pipeline *pipeline.Pipeline
	inputs   []input.Input
	hash     string
	path     string
}

// Manager owns every loaded pipeline, watches their source files for
// changes, and implements message.Dispatcher so actions (call/jump/
// fork) and inputs can hand messages to named pipelines without
// depending on this package.
type Manager struct {
	globs    []string
	registry *action.Registry
	pool     *worker.Pool
	logger   *slog.Logger
	metrics  MetricsRecorder

	mu        sync.RWMutex
	pipelines map[string]*loadedPipeline

	watcher    *fsnotify.Watcher
	dirWatches map[string]bool
	wg         sync.WaitGroup
	running    bool
}

// New builds an unstarted manager over the given glob patterns.
func New(globs []string, registry *action.Registry, pool *worker.Pool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		globs:      globs,
		registry:   registry,
		pool:       pool,
		logger:     logger,
		pipelines:  map[string]*loadedPipeline{},
		dirWatches: map[string]bool{},
	}
}

// SetMetrics attaches a MetricsRecorder; nil disables recording.
func (m *Manager) SetMetrics(metrics MetricsRecorder) {
	m.metrics = metrics
}

// Start loads every pipeline matching the configured globs, starts
// their inputs, and begins watching for filesystem changes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("manager: %w", err)
	}
	m.watcher = w

	paths, err := m.matchedPaths()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := m.load(ctx, path); err != nil {
			m.logger.Error("failed to load pipeline", "path", path, "error", err)
		}
	}

	for _, pattern := range m.globs {
		m.watchParents(filepath.Dir(pattern))
	}

	m.wg.Add(1)
	go m.watchLoop(ctx)
	return nil
}

// Stop stops every pipeline's inputs, drains the worker pool, and
// closes the filesystem watcher.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	watcher := m.watcher
	m.watcher = nil
	loaded := make([]*loadedPipeline, 0, len(m.pipelines))
	for _, lp := range m.pipelines {
		loaded = append(loaded, lp)
	}
	m.pipelines = map[string]*loadedPipeline{}
	m.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	m.wg.Wait()

	for _, lp := range loaded {
		stopInputs(ctx, lp.inputs)
	}
	return m.pool.Stop()
}

// Process dispatches msg into the named pipeline synchronously, on the
// calling goroutine, enforcing the recursion bound (spec.md §4.5). It
// is used directly by call/jump, and by ProcessAsync's worker task.
func (m *Manager) Process(ctx context.Context, msg message.Message, pipelineName string, depth int) error {
	if depth+1 > maxDepth {
		return fmt.Errorf("manager: recursion-too-deep dispatching to %q", pipelineName)
	}

	m.mu.RLock()
	lp, ok := m.pipelines[pipelineName]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("manager: no such pipeline %q", pipelineName)
	}

	mctx := message.NewContext(m)
	mctx.Depth = depth + 1
	return lp.pipeline.Run(ctx, msg, mctx)
}

// ProcessAsync enqueues msg onto the shared worker pool, which runs
// Process in a fresh task starting at depth 0 (spec.md §4.5: "inputs
// deliver via process_async"). Pool/queue failures are logged, not
// returned, matching inputs' fire-and-forget emit contract.
func (m *Manager) ProcessAsync(ctx context.Context, msg message.Message, pipelineName string) {
	err := m.pool.Submit(func(taskCtx context.Context) {
		if err := m.Process(taskCtx, msg, pipelineName, 0); err != nil {
			m.logger.Error("pipeline dispatch failed", "pipeline", pipelineName, "error", err)
		}
	})
	if err != nil {
		m.logger.Error("failed to enqueue message", "pipeline", pipelineName, "error", err)
	}
}

// matchedPaths expands every configured glob.
func (m *Manager) matchedPaths() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pattern := range m.globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("manager: glob %q: %w", pattern, err)
		}
		for _, p := range matches {
			abs, err := filepath.Abs(p)
			if err != nil {
				continue
			}
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
		}
	}
	return out, nil
}

// pipelineName derives a pipeline's name from its file path: the
// basename stripped of extension (spec.md §4.5).
func pipelineName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// load reads, parses, and compiles the pipeline at path, starts its
// inputs, and registers it under its name, atomically replacing any
// previous pipeline of the same name (spec.md §4.5: "reloading
// atomically stops the existing inputs, replaces the step list,
// rebuilds inputs, and restarts them").
func (m *Manager) load(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	hash := hashBytes(data)
	name := pipelineName(path)

	m.mu.RLock()
	existing, hadExisting := m.pipelines[name]
	m.mu.RUnlock()
	if hadExisting && existing.hash == hash {
		return nil
	}

	doc, err := pipeline.ParseDocument(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	compiled, err := pipeline.Compile(name, doc, m.registry, m.logger)
	if err != nil {
		return fmt.Errorf("compile %s: %w", path, err)
	}
	if m.metrics != nil {
		compiled.SetMetrics(m.metrics)
	}

	inputs := make([]input.Input, 0, len(doc.Inputs))
	for _, cfg := range doc.Inputs {
		in, err := buildInput(cfg)
		if err != nil {
			stopInputs(ctx, inputs)
			return fmt.Errorf("%s: input %q: %w", path, cfg.Name, err)
		}
		inputs = append(inputs, in)
	}

	newLP := &loadedPipeline{pipeline: compiled, inputs: inputs, hash: hash, path: path}

	if hadExisting {
		stopInputs(ctx, existing.inputs)
	}

	emit := func(fields message.Message) {
		m.ProcessAsync(ctx, fields, name)
	}
	for _, in := range inputs {
		if err := in.Start(ctx, emit); err != nil {
			stopInputs(ctx, inputs)
			return fmt.Errorf("%s: start input: %w", path, err)
		}
	}

	m.mu.Lock()
	m.pipelines[name] = newLP
	count := len(m.pipelines)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetPipelinesLoaded(count)
	}

	if hadExisting {
		m.logger.Info("pipeline reloaded", "name", name, "path", path)
	} else {
		m.logger.Info("pipeline loaded", "name", name, "path", path)
	}
	return nil
}

// unload stops and drops the pipeline registered under path's name
// (spec.md §4.5: delete/delete-self).
func (m *Manager) unload(ctx context.Context, path string) {
	name := pipelineName(path)

	m.mu.Lock()
	lp, ok := m.pipelines[name]
	if ok {
		delete(m.pipelines, name)
	}
	count := len(m.pipelines)
	m.mu.Unlock()

	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.SetPipelinesLoaded(count)
	}
	stopInputs(ctx, lp.inputs)
	m.logger.Info("pipeline unloaded", "name", name, "path", path)
}

func stopInputs(ctx context.Context, inputs []input.Input) {
	for _, in := range inputs {
		_ = in.Stop(ctx)
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (m *Manager) watchParents(dir string) {
	for {
		if !m.dirWatches[dir] {
			if err := m.watcher.Add(dir); err == nil {
				m.dirWatches[dir] = true
			}
		}
		if !strings.ContainsAny(dir, "*?[") {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()

	debounce := 300 * time.Millisecond
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	pending := map[string]time.Time{}
	var mu sync.Mutex

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return
				}
				if !m.matchesAnyGlob(event.Name) {
					continue
				}
				mu.Lock()
				pending[event.Name] = time.Now()
				mu.Unlock()

			case _, ok := <-m.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			mu.Lock()
			ready := map[string]time.Time{}
			for path, t := range pending {
				if time.Since(t) >= debounce {
					ready[path] = t
					delete(pending, path)
				}
			}
			mu.Unlock()

			for path := range ready {
				m.reactToChange(ctx, path)
			}

		case <-done:
			return
		}
	}
}

// reactToChange reloads or unloads the pipeline at path depending on
// whether it still exists on disk (spec.md §4.5's close-write/
// moved-in vs. delete/delete-self split, collapsed here since a
// missing file after the debounce window means exactly "it was
// deleted, or moved away").
func (m *Manager) reactToChange(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		m.unload(ctx, path)
		return
	}
	if err := m.load(ctx, path); err != nil {
		m.logger.Error("failed to reload pipeline", "path", path, "error", err)
	}
}

func (m *Manager) matchesAnyGlob(path string) bool {
	for _, pattern := range m.globs {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}
