package watch

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// ErrClosed indicates the watcher was closed.
var ErrClosed = errors.New("watcher closed")

// Sink receives changes to tracked files. Calls arrive on the watcher goroutine.
type Sink interface {
	OnFileChanged(event schema.FileChangedEvent)
}

// Watcher reports external changes to a set of files. It watches the parent
// directories so files replaced by rename are still observed.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	sink    Sink
	log     pslog.Logger
	dirs    map[string]int
	files   map[string]struct{}
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New starts a watcher that reports to sink.
func New(sink Sink, logger pslog.Logger) (*Watcher, error) {
	if sink == nil {
		return nil, errors.New("watcher requires a sink")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		sink:    sink,
		log:     logger,
		dirs:    make(map[string]int),
		files:   make(map[string]struct{}),
		closeCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Track starts reporting changes to path. Tracking a path twice is a no-op.
func (w *Watcher) Track(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			w.warn("watch add failed", dir, err)
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = struct{}{}
	w.trace("watch track", abs)
	return nil
}

// Untrack stops reporting changes to path.
func (w *Watcher) Untrack(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)
	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.fsw.Remove(dir); err != nil {
			w.warn("watch remove failed", dir, err)
		}
	}
	w.trace("watch untrack", abs)
	return nil
}

// Tracked reports whether path is tracked.
func (w *Watcher) Tracked(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.warn("watch error", "", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	w.mu.Lock()
	_, tracked := w.files[path]
	w.mu.Unlock()
	if !tracked {
		return
	}
	var op schema.FileChangeOp
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = schema.FileChangeRemoved
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		op = schema.FileChangeWritten
	default:
		return
	}
	w.trace("watch change", path)
	w.sink.OnFileChanged(schema.FileChangedEvent{Path: path, Op: op})
}

func (w *Watcher) warn(msg, path string, err error) {
	if w.log == nil {
		return
	}
	if path != "" {
		w.log.Warn(msg, "path", path, "err", err)
		return
	}
	w.log.Warn(msg, "err", err)
}

func (w *Watcher) trace(msg, path string) {
	if w.log != nil {
		w.log.Trace(msg, "path", path)
	}
}
