// Package tail implements the file-tailing input: glob-based file
// discovery, rotation detection, and partial-line buffering across
// reads, grounded on original_source/logshipper/tail.py's Tail class
// with pyinotify replaced by fsnotify (spec.md §4.4.1).
package tail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/ondergetekende/logshipper/input"
	"github.com/ondergetekende/logshipper/message"
)

// Config configures one Tail input.
type Config struct {
	// Globs is one or more filename patterns (filepath.Glob syntax).
	Globs []string
}

// fileTail tracks one currently-open, followed file.
type fileTail struct {
	path   string
	file   *os.File
	buffer []byte
	size   int64
	inode  uint64
}

// Input follows every file matching Config.Globs, discovering new
// matches and reopening rotated files as they appear.
type Input struct {
	globs []string

	watcher    *fsnotify.Watcher
	tails      map[string]*fileTail
	dirWatches map[string]bool

	mu   sync.Mutex
	wg   sync.WaitGroup
	emit input.Emitter
}

// New builds an unstarted tail input over the given glob patterns.
func New(cfg Config) *Input {
	return &Input{
		globs:      cfg.Globs,
		tails:      map[string]*fileTail{},
		dirWatches: map[string]bool{},
	}
}

// Start discovers currently-matching files (seeking to their current
// end, so only new lines are delivered), begins watching their parent
// directories for new/rotated files, and launches the event loop.
func (in *Input) Start(ctx context.Context, emit input.Emitter) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tail: %w", err)
	}
	in.watcher = w
	in.emit = emit

	in.updateTails(true)

	in.wg.Add(1)
	go in.loop()
	return nil
}

func (in *Input) loop() {
	defer in.wg.Done()

	for {
		select {
		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			in.handleEvent(event)
		case _, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (in *Input) handleEvent(event fsnotify.Event) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if tail, ok := in.tails[event.Name]; ok {
		if event.Op&fsnotify.Write != 0 {
			in.readTail(tail)
		} else {
			in.processTail(event.Name, false)
		}
		return
	}

	// Not a file we're already following: something changed in a
	// watched directory, so re-evaluate every glob for new matches
	// (original_source/logshipper/tail.py: _inotify_dir).
	in.updateTails(false)
}

// readTail drains everything currently available on tail's file
// descriptor, splitting on newlines and carrying any trailing partial
// line forward in tail.buffer until it is completed by a later read.
func (in *Input) readTail(tail *fileTail) {
	buf := make([]byte, 4096)
	for {
		n, err := tail.file.Read(buf)
		if n == 0 || err != nil {
			return
		}

		tail.buffer = append(tail.buffer, buf[:n]...)

		for {
			idx := bytes.IndexByte(tail.buffer, '\n')
			if idx < 0 {
				break
			}
			line := string(tail.buffer[:idx])
			tail.buffer = tail.buffer[idx+1:]
			input.Emit(in.emit, message.Message{message.FieldText: line})
		}
	}
}

// processTail (re)establishes the tail for path: if already tailed and
// the file looks rotated (shrunk, or a different inode), the old
// handle is closed (flushing any buffered partial line) and reopened
// from the start; otherwise any newly-available bytes are read.
func (in *Input) processTail(path string, seekToEnd bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	inode := inodeOf(fi)

	if tail, ok := in.tails[path]; ok {
		in.readTail(tail)

		if fi.Size() < tail.size || inode != tail.inode {
			in.closeTail(tail)
			delete(in.tails, path)
		} else {
			tail.size = fi.Size()
			return
		}
	}

	tail, err := in.openTail(path, seekToEnd)
	if err != nil {
		return
	}
	tail.size = fi.Size()
	tail.inode = inode
	in.tails[path] = tail
	in.readTail(tail)
}

// updateTails re-globs every configured pattern, tailing new matches,
// dropping vanished ones, and ensuring every parent directory up to
// the glob's first wildcard segment is watched (original_source's
// update_tails). seekToEnd controls whether newly discovered files
// start from their current end (startup) or from byte zero (a file
// that appeared after startup, where "new" output starts at zero).
func (in *Input) updateTails(seekToEnd bool) {
	matched := map[string]bool{}

	for _, pattern := range in.globs {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range paths {
			abs, err := filepath.Abs(path)
			if err != nil {
				continue
			}
			in.processTail(abs, seekToEnd)
			matched[abs] = true
		}
	}

	for path, tail := range in.tails {
		if !matched[path] {
			in.closeTail(tail)
			delete(in.tails, path)
		}
	}

	for _, pattern := range in.globs {
		in.watchParents(pattern)
	}
}

func (in *Input) watchParents(pattern string) {
	dir := filepath.Dir(pattern)
	for {
		if !in.dirWatches[dir] {
			if err := in.watcher.Add(dir); err == nil {
				in.dirWatches[dir] = true
			}
		}
		if !containsWildcard(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func containsWildcard(path string) bool {
	return bytes.ContainsAny([]byte(path), "*?[")
}

func (in *Input) openTail(path string, seekToEnd bool) (*fileTail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if seekToEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, err
		}
	}
	in.watcher.Add(path)
	return &fileTail{path: path, file: f}, nil
}

// closeTail stops watching path and flushes any trailing partial line
// still buffered as one last message (original_source: close_tail
// emits tail.buffer as a final message).
func (in *Input) closeTail(tail *fileTail) {
	in.watcher.Remove(tail.path)
	tail.file.Close()
	if len(tail.buffer) > 0 {
		input.Emit(in.emit, message.Message{message.FieldText: string(tail.buffer)})
		tail.buffer = nil
	}
}

func inodeOf(fi os.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}

// Stop closes the filesystem watcher, flushing every still-open tail's
// trailing partial line, and waits for the event loop to exit.
func (in *Input) Stop(ctx context.Context) error {
	in.mu.Lock()
	w := in.watcher
	in.watcher = nil
	if w == nil {
		in.mu.Unlock()
		return nil
	}

	for path, tail := range in.tails {
		in.closeTail(tail)
		delete(in.tails, path)
	}
	in.mu.Unlock()

	w.Close()
	in.wg.Wait()
	return nil
}
