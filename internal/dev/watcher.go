package dev

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// ChangeOp is what happened to a file.
type ChangeOp int

const (
	// ChangeWrite covers creation and modification.
	ChangeWrite ChangeOp = iota

	// ChangeRemove covers deletion and renaming away.
	ChangeRemove
)

func (op ChangeOp) String() string {
	if op == ChangeRemove {
		return "remove"
	}
	return "write"
}

// Change represents a detected file change.
type Change struct {
	Path string
	Op   ChangeOp
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Dirs are watched recursively.
	Dirs []string

	// Files are watched individually, through their parent directory.
	Files []string

	// Ignore patterns to skip. A pattern without a slash matches a path
	// segment or, with glob characters, a base name; one with a slash is a
	// doublestar pattern matched against the slash-separated path.
	Ignore []string

	// Debounce is how long the watcher waits for more events before
	// reporting a batch.
	Debounce time.Duration

	// Logger receives watch errors. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".routewrap",
	"*.tmp",
	"*.swp",
	"*~",
}

// Watcher monitors route files for changes.
type Watcher struct {
	config   WatcherConfig
	files    map[string]struct{}
	onChange func([]Change)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = 100 * time.Millisecond
	}
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	files := make(map[string]struct{}, len(config.Files))
	for _, f := range config.Files {
		files[filepath.Clean(f)] = struct{}{}
	}

	return &Watcher{config: config, files: files}
}

// OnChange sets the callback for batches of changes. Paths in a batch are
// unique and sorted.
func (w *Watcher) OnChange(fn func([]Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is done or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, dir := range w.config.Dirs {
		w.addRecursive(fw, dir)
	}
	for f := range w.files {
		if err := fw.Add(filepath.Dir(f)); err != nil {
			w.config.Logger.Warn("cannot watch directory", "dir", filepath.Dir(f), "error", err)
		}
	}

	pending := make(map[string]ChangeOp)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stopCh:
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(fw, event, pending) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			timerC = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Warn("watch error", "error", err)

		case <-timerC:
			timerC = nil
			w.flush(pending)
			pending = make(map[string]ChangeOp)
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stopCh)
		w.running = false
	}
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// handleEvent records event in pending and reports whether anything changed.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event, pending map[string]ChangeOp) bool {
	path := filepath.Clean(event.Name)
	if w.shouldIgnore(path) {
		return false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !w.tracked(path) {
			return false
		}
		pending[path] = ChangeRemove
		return true

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.IsDir() {
			if !w.inDirs(path) {
				return false
			}
			// Files may land before the new directory is watched.
			return w.addRecursive(fw, path, pending) > 0
		}
		if !w.tracked(path) {
			return false
		}
		pending[path] = ChangeWrite
		return true
	}
	return false
}

// addRecursive watches dir and its subdirectories. Files found are queued
// in pending when one is given; the number queued is returned.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string, pending ...map[string]ChangeOp) int {
	queued := 0
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if w.shouldIgnore(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(p); err != nil {
				w.config.Logger.Warn("cannot watch directory", "dir", p, "error", err)
			}
			return nil
		}
		if len(pending) > 0 {
			pending[0][filepath.Clean(p)] = ChangeWrite
			queued++
		}
		return nil
	})
	return queued
}

func (w *Watcher) flush(pending map[string]ChangeOp) {
	if len(pending) == 0 {
		return
	}
	w.mu.Lock()
	callback := w.onChange
	w.mu.Unlock()
	if callback == nil {
		return
	}

	changes := make([]Change, 0, len(pending))
	for p, op := range pending {
		changes = append(changes, Change{Path: p, Op: op})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	callback(changes)
}

// tracked reports whether path is an explicit file or below a watched dir.
func (w *Watcher) tracked(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	return w.inDirs(path)
}

func (w *Watcher) inDirs(path string) bool {
	for _, dir := range w.config.Dirs {
		if isWithinDir(path, dir) {
			return true
		}
	}
	return false
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(fullPath)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/")
		hasGlob := strings.ContainsAny(pattern, "*?[")

		switch {
		case hasPathSep:
			if matched, _ := doublestar.Match(strings.TrimPrefix(pattern, "/"), strings.TrimPrefix(normalized, "/")); matched {
				return true
			}
			if !hasGlob && pathMatchesSegments(normalized, pattern) {
				return true
			}
		case hasGlob:
			if matched, _ := doublestar.Match(pattern, name); matched {
				return true
			}
		default:
			if pathHasSegment(normalized, pattern) {
				return true
			}
		}
	}

	return false
}

func pathHasSegment(path, segment string) bool {
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}

func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
