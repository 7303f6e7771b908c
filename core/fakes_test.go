package core

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"pkt.systems/idemy/schema"
)

type memFS struct {
	files     map[string]string
	reads     map[string]int
	writeErr  error
	readCount int
}

func newMemFS(files map[string]string) *memFS {
	if files == nil {
		files = map[string]string{}
	}
	return &memFS{files: files, reads: map[string]int{}}
}

func (m *memFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	m.readCount++
	m.reads[path]++
	content, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(content), nil
}

func (m *memFS) WriteFile(ctx context.Context, path string, data []byte) error {
	_ = ctx
	if m.writeErr != nil {
		return m.writeErr
	}
	m.files[path] = string(data)
	return nil
}

func (m *memFS) CreateFile(ctx context.Context, path string) error {
	return m.WriteFile(ctx, path, nil)
}

func (m *memFS) CreateDirectory(ctx context.Context, path string) error {
	_ = ctx
	_ = path
	return nil
}

func (m *memFS) Delete(ctx context.Context, path string) error {
	_ = ctx
	if _, ok := m.files[path]; !ok {
		return fs.ErrNotExist
	}
	delete(m.files, path)
	return nil
}

func (m *memFS) ListChildren(ctx context.Context, path string) ([]schema.Entry, error) {
	_ = ctx
	var out []schema.Entry
	for name := range m.files {
		if filepath.Dir(name) == path {
			out = append(out, schema.Entry{Name: filepath.Base(name), Path: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type recordSink struct {
	events []schema.BufferEvent
}

func (r *recordSink) OnBufferEvent(event schema.BufferEvent) {
	r.events = append(r.events, event)
}

func (r *recordSink) types() []schema.BufferEventType {
	out := make([]schema.BufferEventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

type recordListener struct {
	mu      sync.Mutex
	outputs []schema.CommandOutputEvent
	exits   []schema.CommandExitEvent
	order   []string
}

func (r *recordListener) OnCommandOutput(event schema.CommandOutputEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, event)
	r.order = append(r.order, "output")
}

func (r *recordListener) OnCommandExit(event schema.CommandExitEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, event)
	r.order = append(r.order, "exit")
}

type fakeRunner struct {
	requests []RunCommandRequest
	outputs  []CommandOutput
	result   RunResult
	startErr error
	waitErr  error
}

func (f *fakeRunner) RunCommand(ctx context.Context, req RunCommandRequest) (CommandHandle, error) {
	_ = ctx
	f.requests = append(f.requests, req)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeHandle{
		stream:  &fakeStream{outputs: append([]CommandOutput(nil), f.outputs...)},
		result:  f.result,
		waitErr: f.waitErr,
	}, nil
}

type fakeHandle struct {
	stream  *fakeStream
	result  RunResult
	waitErr error
	closed  bool
}

func (h *fakeHandle) Outputs() CommandStream {
	return h.stream
}

func (h *fakeHandle) Wait(ctx context.Context) (RunResult, error) {
	_ = ctx
	if !h.stream.drained {
		return RunResult{}, errors.New("wait before drain")
	}
	return h.result, h.waitErr
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

type fakeStream struct {
	outputs []CommandOutput
	drained bool
}

func (s *fakeStream) Next(ctx context.Context) (CommandOutput, error) {
	if err := ctx.Err(); err != nil {
		return CommandOutput{}, err
	}
	if len(s.outputs) == 0 {
		s.drained = true
		return CommandOutput{}, io.EOF
	}
	out := s.outputs[0]
	s.outputs = s.outputs[1:]
	return out, nil
}

func (s *fakeStream) Close() error {
	return nil
}
