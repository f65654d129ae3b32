// Package watch implements the debounced, recursive filesystem watch
// loop: changes under a pipeline's workspace trigger a re-run of the
// pipeline once events settle, collapsing any events that arrive while a
// run is already in flight into a single follow-up run.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alexisbeaulieu97/conflow/internal/logx"
)

// DefaultDebounce is the settle window used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc re-runs the pipeline. It is invoked at most once per settled
// batch of filesystem events, never concurrently with itself.
type RunFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Root      string
	CacheDir  string // excluded from the watch so cache writes never self-trigger
	Debounce  time.Duration
	Logger    *logx.Logger
	RunOnOpen bool // run once immediately before watching for changes
}

// Watcher recursively watches a workspace root and calls Run after a
// debounce window following the most recent relevant filesystem event.
type Watcher struct {
	opts    Options
	log     *logx.Logger
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	pending   bool
	running   bool
	rerunNext bool
}

// New constructs a Watcher rooted at opts.Root, adding every directory
// under it (except the cache directory) to the underlying fsnotify watch.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = logx.Nop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{opts: opts, log: log, watcher: fw}
	if err := w.addTree(opts.Root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isExcluded(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) isExcluded(path string) bool {
	if w.opts.CacheDir == "" {
		return false
	}
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return false
	}
	return rel == w.opts.CacheDir || strings.HasPrefix(rel, w.opts.CacheDir+string(filepath.Separator))
}

// Run starts the watch loop, invoking fn after each settled batch of
// events, until ctx is cancelled. It blocks until the context is done.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	defer w.watcher.Close()

	if w.opts.RunOnOpen {
		go w.invoke(ctx, fn)
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.shouldIgnore(event) {
				continue
			}
			w.log.WithFields(map[string]interface{}{"path": event.Name, "op": event.Op.String()}).Debug("filesystem event")
			debounce.Reset(w.opts.Debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", err)

		case <-debounce.C:
			go w.invoke(ctx, fn)
		}
	}
}

func (w *Watcher) shouldIgnore(event fsnotify.Event) bool {
	if w.isExcluded(filepath.Dir(event.Name)) || w.isExcluded(event.Name) {
		return true
	}
	if event.Op&(fsnotify.Chmod) != 0 && event.Op == fsnotify.Chmod {
		return true
	}
	return false
}

// invoke runs fn, collapsing any event that arrives while a run is
// already in flight into a single immediate follow-up run rather than
// queuing one run per event.
func (w *Watcher) invoke(ctx context.Context, fn RunFunc) {
	w.mu.Lock()
	if w.running {
		w.rerunNext = true
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		if err := fn(ctx); err != nil {
			w.log.Error("run failed", err)
		}

		w.mu.Lock()
		if !w.rerunNext {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.rerunNext = false
		w.mu.Unlock()
	}
}

// Close stops watching without running the event loop further.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
