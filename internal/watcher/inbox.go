// Package watcher feeds files dropped into inbox directories to the
// ingestion pipeline using fsnotify, with per-file debouncing so a file
// still being copied is picked up once, after its last write.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// IngestFunc receives the dropped file's name and content. It runs on the
// watcher goroutine's timer, so it should hand off quickly (the ingestion
// queue is non-blocking).
type IngestFunc func(filename string, content []byte)

// Inbox watches flat drop directories for new contract files.
type Inbox struct {
	dirs       []string
	extensions []string
	onFile     IngestFunc
	debounce   time.Duration
	logger     *zap.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timers   map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Inbox) { i.logger = l }
}

// WithDebounce overrides the write-settle delay.
func WithDebounce(d time.Duration) Option {
	return func(i *Inbox) { i.debounce = d }
}

// NewInbox creates an inbox over the given directories. extensions filters
// which files are picked up (empty = all). Directories are created if
// missing.
func NewInbox(dirs, extensions []string, onFile IngestFunc, opts ...Option) *Inbox {
	i := &Inbox{
		dirs:       dirs,
		extensions: extensions,
		onFile:     onFile,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		timers:     make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start begins watching. Files already sitting in the inbox directories are
// handed off immediately so a restart does not strand them.
func (i *Inbox) Start() error {
	i.mu.Lock()
	if i.started {
		i.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		i.mu.Unlock()
		return err
	}
	for _, dir := range i.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = watcher.Close()
			i.mu.Unlock()
			return err
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			i.mu.Unlock()
			return err
		}
	}
	i.watcher = watcher
	i.started = true
	i.mu.Unlock()

	i.logger.Info("inbox watching", zap.Strings("dirs", i.dirs), zap.Strings("extensions", i.extensions))
	go i.run()
	i.drainExisting()
	return nil
}

func (i *Inbox) run() {
	for {
		select {
		case <-i.done:
			return
		case ev, ok := <-i.watcher.Events:
			if !ok {
				return
			}
			i.handleEvent(ev)
		case err, ok := <-i.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				i.logger.Warn("inbox watch error", zap.Error(err))
			}
		}
	}
}

func (i *Inbox) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
			return
		}
		if !i.matchExtension(ev.Name) {
			return
		}
		i.schedule(ev.Name)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		i.cancel(ev.Name)
	}
}

// schedule (re)arms the debounce timer for a path. Each write resets it, so
// the file is read only after writes settle.
func (i *Inbox) schedule(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if t, ok := i.timers[path]; ok {
		t.Stop()
	}
	i.timers[path] = time.AfterFunc(i.debounce, func() {
		i.mu.Lock()
		delete(i.timers, path)
		i.mu.Unlock()
		i.pickup(path)
	})
}

func (i *Inbox) cancel(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if t, ok := i.timers[path]; ok {
		t.Stop()
		delete(i.timers, path)
	}
}

// pickup reads a settled file and hands it off. The file is removed on
// success; the inbox is a mailbox, not a library.
func (i *Inbox) pickup(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		i.logger.Warn("inbox file unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	i.logger.Info("inbox file picked up", zap.String("path", path), zap.Int("bytes", len(content)))
	i.onFile(filepath.Base(path), content)
	if err := os.Remove(path); err != nil {
		i.logger.Warn("inbox file not removed after pickup", zap.String("path", path), zap.Error(err))
	}
}

// drainExisting hands off files already present at startup.
func (i *Inbox) drainExisting() {
	for _, dir := range i.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			i.logger.Warn("inbox drain failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if i.matchExtension(path) {
				i.pickup(path)
			}
		}
	}
}

func (i *Inbox) matchExtension(path string) bool {
	if len(i.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range i.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Stop stops watching and cancels pending pickups.
func (i *Inbox) Stop() {
	i.mu.Lock()
	if !i.started || i.watcher == nil {
		i.mu.Unlock()
		return
	}
	for path, t := range i.timers {
		t.Stop()
		delete(i.timers, path)
	}
	_ = i.watcher.Close()
	i.watcher = nil
	i.started = false
	i.mu.Unlock()
	i.stopOnce.Do(func() { close(i.done) })
}
