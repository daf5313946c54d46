package extension

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"remarkfmt/internal/editor"
	"remarkfmt/internal/logging"
)

// DefaultDebounce is how long a file must stay quiet before it is formatted.
const DefaultDebounce = 500 * time.Millisecond

var skipDirs = map[string]bool{
	".git":         true,
	".remarkfmt":   true,
	"node_modules": true,
	"vendor":       true,
}

// SaveWatcher formats Markdown files under a directory when they are saved.
// It goes through the range provider with the whole document as the range,
// so it races freely with manual invocations.
type SaveWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	ext         *Extension
	root        string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	// written remembers what the watcher itself last wrote to a path so the
	// resulting event is not formatted again.
	written map[string]string
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	FilesSaved    int
	Formatted     int
	Unchanged     int
	Failures      int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// NewSaveWatcher creates a watcher over root. A zero debounce uses DefaultDebounce.
func NewSaveWatcher(root string, ext *Extension, debounce time.Duration) (*SaveWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &SaveWatcher{
		watcher:     watcher,
		ext:         ext,
		root:        root,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		written:     make(map[string]string),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start adds root and its subdirectories to the watch list and begins
// processing events in a goroutine.
func (sw *SaveWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true
	sw.mu.Unlock()

	if err := sw.addTree(sw.root); err != nil {
		sw.mu.Lock()
		sw.running = false
		sw.mu.Unlock()
		return err
	}
	logging.Watch("SaveWatcher: watching %s", sw.root)

	go sw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (sw *SaveWatcher) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh

	if err := sw.watcher.Close(); err != nil {
		logging.WatchError("SaveWatcher: error closing watcher: %v", err)
	}
	logging.Watch("SaveWatcher: stopped")
}

// Done is closed when the event loop exits.
func (sw *SaveWatcher) Done() <-chan struct{} {
	return sw.doneCh
}

func (sw *SaveWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := sw.watcher.Add(path); err != nil {
			logging.Get(logging.CategoryWatch).Warn("SaveWatcher: cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (sw *SaveWatcher) run(ctx context.Context) {
	defer close(sw.doneCh)

	tick := sw.debounceDur / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("SaveWatcher: context cancelled")
			return

		case <-sw.stopCh:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("SaveWatcher error: %v", err)
			sw.mu.Lock()
			sw.stats.Errors++
			sw.mu.Unlock()

		case <-debounceTicker.C:
			sw.processDebouncedEvents(ctx)
		}
	}
}

func isMarkdown(path string) bool {
	doc := editor.NewTextDocument(path, "")
	return Supports(doc)
}

func (sw *SaveWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[filepath.Base(event.Name)] {
				_ = sw.addTree(event.Name)
			}
			return
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isMarkdown(event.Name) {
		return
	}

	logging.WatchDebug("SaveWatcher: %s %s", event.Op, event.Name)

	sw.mu.Lock()
	sw.stats.LastEventTime = time.Now()
	sw.stats.LastEventPath = event.Name
	sw.debounceMap[event.Name] = time.Now()
	sw.mu.Unlock()
}

func (sw *SaveWatcher) processDebouncedEvents(ctx context.Context) {
	sw.mu.Lock()
	now := time.Now()
	toProcess := make([]string, 0)
	for path, eventTime := range sw.debounceMap {
		if now.Sub(eventTime) >= sw.debounceDur {
			toProcess = append(toProcess, path)
			delete(sw.debounceMap, path)
		}
	}
	sw.mu.Unlock()

	for _, path := range toProcess {
		sw.formatFile(ctx, path)
	}
}

func (sw *SaveWatcher) formatFile(ctx context.Context, path string) {
	ed, err := editor.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		logging.WatchError("SaveWatcher: %v", err)
		sw.mu.Lock()
		sw.stats.Errors++
		sw.mu.Unlock()
		return
	}

	text := ed.Document.Text()
	sw.mu.Lock()
	if last, ok := sw.written[path]; ok && last == text {
		delete(sw.written, path)
		sw.mu.Unlock()
		return
	}
	sw.stats.FilesSaved++
	sw.mu.Unlock()

	edits, err := sw.ext.ProvideRangeFormattingEdits(ctx, ed.Document, ed.Document.FullRange())
	if err != nil {
		logging.Get(logging.CategoryWatch).Warn("SaveWatcher: %s not formatted", path)
		sw.mu.Lock()
		sw.stats.Failures++
		sw.mu.Unlock()
		return
	}

	if err := ed.Edit(func(b *editor.EditBuilder) {
		for _, e := range edits {
			b.Replace(e.Range, e.NewText)
		}
	}); err != nil {
		logging.WatchError("SaveWatcher: cannot apply edits to %s: %v", path, err)
		return
	}

	formatted := ed.Document.Text()
	if formatted == text {
		sw.mu.Lock()
		sw.stats.Unchanged++
		sw.mu.Unlock()
		return
	}

	sw.mu.Lock()
	sw.written[path] = formatted
	sw.mu.Unlock()
	if err := ed.Save(); err != nil {
		logging.WatchError("SaveWatcher: %v", err)
		sw.mu.Lock()
		delete(sw.written, path)
		sw.stats.Errors++
		sw.mu.Unlock()
		return
	}

	sw.mu.Lock()
	sw.stats.Formatted++
	sw.mu.Unlock()
	logging.Watch("SaveWatcher: formatted %s", path)
}

// Stats returns the current watcher statistics.
func (sw *SaveWatcher) Stats() WatcherStats {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stats
}

// IsWatching returns true if the watcher is currently running.
func (sw *SaveWatcher) IsWatching() bool {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.running
}

// WatchedDirs returns the directories being watched.
func (sw *SaveWatcher) WatchedDirs() []string {
	return sw.watcher.WatchList()
}
