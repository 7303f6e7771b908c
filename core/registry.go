package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"pkt.systems/idemy/internal/logx"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// Registry is the single source of truth for open buffers, their dirty state
// and which buffer is active.
//
// A Registry is owned by one goroutine (the UI loop). It performs no locking;
// workers must hand results to the owner instead of calling it directly.
type Registry struct {
	cfg     schema.WorkspaceConfig
	fs      Filesystem
	sink    BufferSink
	logger  pslog.Logger
	docs    map[schema.BufferID]*document
	byPath  map[string]schema.BufferID
	order   []schema.BufferID
	recent  []schema.BufferID
	active  schema.BufferID
	scratch int
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg schema.WorkspaceConfig, deps RegistryDeps) (*Registry, error) {
	normalized, err := schema.NormalizeWorkspaceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Filesystem == nil {
		return nil, errors.New("registry requires a filesystem")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{
		cfg:    normalized,
		fs:     deps.Filesystem,
		sink:   deps.Sink,
		logger: logger.With("root", normalized.ProjectRoot),
		docs:   make(map[schema.BufferID]*document),
		byPath: make(map[string]schema.BufferID),
	}, nil
}

// Root returns the project root used to anchor relative paths.
func (r *Registry) Root() string {
	return r.cfg.ProjectRoot
}

// OpenPath returns the buffer for path, reading the file only when no buffer
// holds it yet. The returned buffer becomes active.
func (r *Registry) OpenPath(ctx context.Context, path string) (schema.BufferSnapshot, error) {
	abs, err := ResolvePath(r.cfg.ProjectRoot, path)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	log := logx.WithPath(logx.Ctx(ctx), abs)
	key := canonicalPath(abs)
	if id, ok := r.byPath[key]; ok {
		r.activate(id)
		log.Debug("registry open reused", "buffer", id)
		return r.docs[id].Snapshot(true), nil
	}
	data, err := r.fs.ReadFile(ctx, abs)
	if err != nil {
		log.Warn("registry open failed", "err", err)
		return schema.BufferSnapshot{}, &schema.IOError{Op: "open", Path: abs, Err: err}
	}
	content := string(data)
	doc := &document{
		id:    newBufferID(),
		name:  schema.BufferName(filepath.Base(abs)),
		path:  abs,
		key:   key,
		saved: content,
		live:  content,
	}
	r.insert(doc)
	r.emit(schema.BufferEventOpened, doc)
	r.activate(doc.id)
	log.Info("registry buffer opened", "buffer", doc.id, "bytes", len(data))
	return doc.Snapshot(true), nil
}

// NewScratch creates an empty buffer without a backing file and activates it.
func (r *Registry) NewScratch(ctx context.Context) schema.BufferSnapshot {
	r.scratch++
	doc := &document{
		id:   newBufferID(),
		name: schema.BufferName(fmt.Sprintf("%s%d", r.cfg.ScratchPrefix, r.scratch)),
	}
	r.insert(doc)
	r.emit(schema.BufferEventOpened, doc)
	r.activate(doc.id)
	logx.WithBuffer(ctx, doc.id).Info("registry scratch created", "name", doc.name)
	return doc.Snapshot(true)
}

// Edit replaces the live content of a buffer. Unchanged content is a no-op.
func (r *Registry) Edit(ctx context.Context, id schema.BufferID, content string) (schema.BufferSnapshot, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	if doc.live == content {
		return doc.Snapshot(id == r.active), nil
	}
	wasDirty := doc.Dirty()
	doc.live = content
	r.emit(schema.BufferEventEdited, doc)
	if wasDirty != doc.Dirty() {
		logx.WithBuffer(ctx, id).Debug("registry dirty changed", "dirty", doc.Dirty())
	}
	return doc.Snapshot(id == r.active), nil
}

// IsDirty reports whether the buffer has unsaved changes.
func (r *Registry) IsDirty(id schema.BufferID) (bool, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return doc.Dirty(), nil
}

// Content returns the live content of a buffer.
func (r *Registry) Content(id schema.BufferID) (string, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return doc.live, nil
}

// SavedContent returns the last saved or loaded content of a buffer.
func (r *Registry) SavedContent(id schema.BufferID) (string, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return doc.saved, nil
}

// Get returns a snapshot of a buffer.
func (r *Registry) Get(id schema.BufferID) (schema.BufferSnapshot, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	return doc.Snapshot(id == r.active), nil
}

// Lookup finds the buffer holding path, if any.
func (r *Registry) Lookup(path string) (schema.BufferSnapshot, bool) {
	abs, err := ResolvePath(r.cfg.ProjectRoot, path)
	if err != nil {
		return schema.BufferSnapshot{}, false
	}
	id, ok := r.byPath[canonicalPath(abs)]
	if !ok {
		return schema.BufferSnapshot{}, false
	}
	return r.docs[id].Snapshot(id == r.active), true
}

// List returns all buffers in tab order.
func (r *Registry) List() []schema.BufferSnapshot {
	out := make([]schema.BufferSnapshot, 0, len(r.order))
	for _, id := range r.order {
		if doc := r.docs[id]; doc != nil {
			out = append(out, doc.Snapshot(id == r.active))
		}
	}
	return out
}

// Dirty returns the dirty buffers in tab order.
func (r *Registry) Dirty() []schema.BufferSnapshot {
	var out []schema.BufferSnapshot
	for _, snap := range r.List() {
		if snap.Dirty {
			out = append(out, snap)
		}
	}
	return out
}

// Active returns the active buffer, if any.
func (r *Registry) Active() (schema.BufferSnapshot, bool) {
	if r.active == "" {
		return schema.BufferSnapshot{}, false
	}
	doc := r.docs[r.active]
	if doc == nil {
		return schema.BufferSnapshot{}, false
	}
	return doc.Snapshot(true), true
}

// Save writes the live content to the backing file. Live content is never altered.
func (r *Registry) Save(ctx context.Context, id schema.BufferID) (schema.BufferSnapshot, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	log := logx.WithPath(logx.WithBuffer(ctx, id), doc.path)
	if doc.path == "" {
		log.Warn("registry save failed", "err", schema.ErrNoBackingPath)
		return schema.BufferSnapshot{}, schema.ErrNoBackingPath
	}
	content := doc.live
	if err := r.fs.WriteFile(ctx, doc.path, []byte(content)); err != nil {
		log.Warn("registry save failed", "err", err)
		return schema.BufferSnapshot{}, &schema.IOError{Op: "save", Path: doc.path, Err: err}
	}
	doc.saved = content
	r.emit(schema.BufferEventSaved, doc)
	log.Info("registry buffer saved", "bytes", len(content))
	return doc.Snapshot(id == r.active), nil
}

// SaveAs writes the live content to path and rebinds the buffer to it.
func (r *Registry) SaveAs(ctx context.Context, id schema.BufferID, path string) (schema.BufferSnapshot, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	abs, err := ResolvePath(r.cfg.ProjectRoot, path)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	log := logx.WithPath(logx.WithBuffer(ctx, id), abs)
	key := canonicalPath(abs)
	if holder, ok := r.byPath[key]; ok && holder != id {
		log.Warn("registry save as rejected", "err", schema.ErrPathOpen, "holder", holder)
		return schema.BufferSnapshot{}, schema.ErrPathOpen
	}
	content := doc.live
	if err := r.fs.WriteFile(ctx, abs, []byte(content)); err != nil {
		log.Warn("registry save as failed", "err", err)
		return schema.BufferSnapshot{}, &schema.IOError{Op: "save", Path: abs, Err: err}
	}
	if doc.key != "" && doc.key != key {
		delete(r.byPath, doc.key)
	}
	doc.path = abs
	doc.key = key
	doc.name = schema.BufferName(filepath.Base(abs))
	doc.saved = content
	r.byPath[doc.key] = id
	r.emit(schema.BufferEventSaved, doc)
	log.Info("registry buffer saved as", "bytes", len(content))
	return doc.Snapshot(id == r.active), nil
}

// Reload re-reads the backing file into a buffer. A dirty buffer is only
// replaced when discardUnsaved is set. The bool result reports whether content changed.
func (r *Registry) Reload(ctx context.Context, id schema.BufferID, discardUnsaved bool) (schema.BufferSnapshot, bool, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return schema.BufferSnapshot{}, false, err
	}
	log := logx.WithPath(logx.WithBuffer(ctx, id), doc.path)
	if doc.path == "" {
		return schema.BufferSnapshot{}, false, schema.ErrNoBackingPath
	}
	if doc.Dirty() && !discardUnsaved {
		log.Warn("registry reload rejected", "err", schema.ErrBufferDirty)
		return schema.BufferSnapshot{}, false, schema.ErrBufferDirty
	}
	data, err := r.fs.ReadFile(ctx, doc.path)
	if err != nil {
		log.Warn("registry reload failed", "err", err)
		return schema.BufferSnapshot{}, false, &schema.IOError{Op: "reload", Path: doc.path, Err: err}
	}
	content := string(data)
	if content == doc.saved && content == doc.live {
		return doc.Snapshot(id == r.active), false, nil
	}
	doc.saved = content
	doc.live = content
	r.emit(schema.BufferEventReloaded, doc)
	log.Info("registry buffer reloaded", "bytes", len(data))
	return doc.Snapshot(id == r.active), true, nil
}

// Close removes a buffer. A dirty buffer is only removed when discardUnsaved is set;
// obtaining that confirmation is the caller's job (see Guard).
func (r *Registry) Close(ctx context.Context, id schema.BufferID, discardUnsaved bool) (schema.BufferSnapshot, error) {
	doc, err := r.lookup(id)
	if err != nil {
		return schema.BufferSnapshot{}, err
	}
	log := logx.WithPath(logx.WithBuffer(ctx, id), doc.path)
	if doc.Dirty() && !discardUnsaved {
		log.Warn("registry close rejected", "err", schema.ErrBufferDirty)
		return schema.BufferSnapshot{}, schema.ErrBufferDirty
	}
	delete(r.docs, id)
	if doc.key != "" {
		delete(r.byPath, doc.key)
	}
	r.order = removeBufferID(r.order, id)
	r.recent = removeBufferID(r.recent, id)
	if r.active == id {
		r.active = ""
		if n := len(r.recent); n > 0 {
			r.active = r.recent[n-1]
		} else if len(r.order) > 0 {
			r.active = r.order[len(r.order)-1]
			r.recent = append(r.recent, r.active)
		}
	}
	snap := doc.Snapshot(false)
	r.emitSnapshot(schema.BufferEventClosed, snap)
	log.Info("registry buffer closed", "discarded", discardUnsaved && snap.Dirty, "active", r.active)
	return snap, nil
}

// SetActive makes id the active buffer.
func (r *Registry) SetActive(ctx context.Context, id schema.BufferID) (schema.BufferSnapshot, error) {
	doc, err := r.lookup(id)
	if err != nil {
		logx.WithBuffer(ctx, id).Warn("registry activate failed", "err", err)
		return schema.BufferSnapshot{}, err
	}
	r.activate(id)
	return doc.Snapshot(true), nil
}

func (r *Registry) lookup(id schema.BufferID) (*document, error) {
	doc := r.docs[id]
	if doc == nil {
		return nil, schema.ErrBufferNotFound
	}
	return doc, nil
}

func (r *Registry) insert(doc *document) {
	r.docs[doc.id] = doc
	if doc.key != "" {
		r.byPath[doc.key] = doc.id
	}
	r.order = append(r.order, doc.id)
}

func (r *Registry) activate(id schema.BufferID) {
	changed := r.active != id
	r.active = id
	r.recent = append(removeBufferID(r.recent, id), id)
	if changed {
		if doc := r.docs[id]; doc != nil {
			r.emit(schema.BufferEventActivated, doc)
		}
	}
}

func (r *Registry) emit(kind schema.BufferEventType, doc *document) {
	r.emitSnapshot(kind, doc.Snapshot(doc.id == r.active))
}

func (r *Registry) emitSnapshot(kind schema.BufferEventType, snap schema.BufferSnapshot) {
	if r.sink == nil {
		return
	}
	r.sink.OnBufferEvent(schema.BufferEvent{Type: kind, Buffer: snap, Active: r.active})
}

func removeBufferID(order []schema.BufferID, id schema.BufferID) []schema.BufferID {
	for i, current := range order {
		if current == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
