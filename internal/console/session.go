package console

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/internal/command"
	"pkt.systems/idemy/internal/eventbus"
	"pkt.systems/idemy/internal/format"
	"pkt.systems/idemy/internal/logx"
	"pkt.systems/idemy/internal/watch"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

const defaultPrompt = "> "

// Config defines console session settings.
type Config struct {
	Workspace schema.WorkspaceConfig
	// Watch reports external changes to open files.
	Watch     bool
	TreeDepth int
	Prompt    string
}

// Deps captures the collaborators a session wires together.
type Deps struct {
	Files  core.Filesystem
	Runner core.Runner
	// Bus is optional; a private bus is created when nil.
	Bus    *eventbus.Bus
	Logger pslog.Logger
}

// Session is one interactive editing session. The registry, command runner and
// handler belong to the goroutine running Run; worker results reach it through
// the event bus.
type Session struct {
	id          string
	cfg         Config
	io          LineIO
	log         pslog.Logger
	render      *format.PlainRenderer
	registry    *core.Registry
	commands    *core.CommandRunner
	handler     *command.Handler
	watcher     *watch.Watcher
	events      <-chan eventbus.Event
	unsubscribe func()
}

// New wires a session. Run must be called to release its resources.
func New(id string, lineIO LineIO, cfg Config, deps Deps) (*Session, error) {
	if lineIO == nil {
		return nil, errors.New("console requires line io")
	}
	if deps.Files == nil || deps.Runner == nil {
		return nil, errors.New("console requires files and runner")
	}
	workspace, err := schema.NormalizeWorkspaceConfig(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	cfg.Workspace = workspace
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if id != "" {
		logger = logger.With("session", id)
	}
	bus := deps.Bus
	if bus == nil {
		bus = eventbus.New(logger)
	}
	render := format.NewPlainRenderer(format.TabStyleFromConfig(workspace))
	s := &Session{id: id, cfg: cfg, io: lineIO, log: logger, render: render}
	publisher := bus.Publisher(id)

	s.registry, err = core.NewRegistry(workspace, core.RegistryDeps{
		Filesystem: deps.Files,
		Sink:       command.NewNotices(s, render),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	s.commands, err = core.NewCommandRunner(workspace, core.CommandRunnerDeps{
		Runner:   deps.Runner,
		Listener: publisher,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	var tracker command.Tracker
	if cfg.Watch {
		s.watcher, err = watch.New(publisher, logger)
		if err != nil {
			return nil, fmt.Errorf("start watcher: %w", err)
		}
		tracker = s.watcher
	}
	s.handler, err = command.NewHandler(command.HandlerDeps{
		Registry: s.registry,
		Commands: s.commands,
		Files:    deps.Files,
		Tracker:  tracker,
		Renderer: render,
		Output:   s,
	}, command.HandlerConfig{
		TreeDepth:           cfg.TreeDepth,
		DisableAuditLogging: workspace.DisableAuditLogging,
	})
	if err != nil {
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
		return nil, err
	}
	s.events, s.unsubscribe = bus.Subscribe(id)
	return s, nil
}

// AppendLines writes handler output. It implements command.Output.
func (s *Session) AppendLines(lines ...string) {
	s.io.WriteLines(lines...)
}

// Open opens files before the session starts reading input.
func (s *Session) Open(ctx context.Context, paths ...string) error {
	return s.handler.Open(s.context(ctx), paths...)
}

// Run reads input until the user quits, input ends or ctx is canceled. At end
// of input it waits for running commands and reports schema.ErrUnsavedOnExit
// when dirty buffers remain. Running commands are killed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(s.context(ctx))
	defer s.shutdown(cancel)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	s.log.Info("console session start", "root", s.registry.Root(), "watch", s.watcher != nil)
	s.updatePrompt()

	events := s.events
	for {
		select {
		case <-ctx.Done():
			s.log.Info("console session canceled")
			return nil
		case line := <-lines:
			if err := s.handler.Handle(ctx, line); err != nil {
				s.io.WriteLines(fmt.Sprintf("error: %v", err))
			}
			if s.handler.Quit() {
				s.log.Info("console session quit")
				return nil
			}
			s.updatePrompt()
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			s.handler.HandleEvent(ctx, ev)
		case err := <-readErr:
			return s.finish(ctx, err)
		}
	}
}

// finish drains running commands after input ended.
func (s *Session) finish(ctx context.Context, readErr error) error {
	idle := make(chan struct{})
	go func() {
		s.commands.Wait()
		close(idle)
	}()
	events := s.events
	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			return nil
		case <-idle:
			waiting = false
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			s.handler.HandleEvent(ctx, ev)
		}
	}
	for drained := false; !drained; {
		select {
		case ev := <-s.events:
			s.handler.HandleEvent(ctx, ev)
		default:
			drained = true
		}
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		s.log.Warn("console input failed", "err", readErr)
		return readErr
	}
	if err := s.handler.CheckExit(); err != nil {
		s.log.Warn("console session ended with unsaved buffers", "err", err)
		s.io.WriteLines(fmt.Sprintf("warning: %v", err))
		return err
	}
	s.log.Info("console session end")
	return nil
}

func (s *Session) readLines(ctx context.Context, lines chan<- string, readErr chan<- error) {
	for {
		line, err := s.io.ReadLine()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) updatePrompt() {
	if s.handler.Pending() {
		s.io.SetPrompt("? ")
		return
	}
	if active, ok := s.registry.Active(); ok {
		s.io.SetPrompt(s.render.TabTitle(active) + " " + s.cfg.Prompt)
		return
	}
	s.io.SetPrompt(s.cfg.Prompt)
}

func (s *Session) shutdown(cancel context.CancelFunc) {
	cancel()
	s.unsubscribe()
	s.commands.Wait()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.Debug("console watcher close failed", "err", err)
		}
	}
}

func (s *Session) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logx.ContextWithSessionLogger(ctx, s.log, s.id)
}
