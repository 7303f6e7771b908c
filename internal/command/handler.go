package command

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/internal/eventbus"
	"pkt.systems/idemy/internal/format"
	"pkt.systems/idemy/internal/logx"
	"pkt.systems/idemy/schema"
)

const defaultTreeDepth = 2

// Output receives lines for the user.
type Output interface {
	AppendLines(lines ...string)
}

// Tracker follows backing files of open buffers for external changes.
type Tracker interface {
	Track(path string) error
	Untrack(path string) error
}

// HandlerConfig configures command behavior.
type HandlerConfig struct {
	TreeDepth           int
	DisableAuditLogging bool
}

// HandlerDeps captures the collaborators a handler drives.
type HandlerDeps struct {
	Registry *core.Registry
	Commands *core.CommandRunner
	Files    core.Filesystem
	// Tracker is optional.
	Tracker  Tracker
	Renderer *format.PlainRenderer
	Output   Output
}

// Handler translates input lines into registry and command runner calls.
// It belongs to the session goroutine that owns the registry.
type Handler struct {
	registry *core.Registry
	commands *core.CommandRunner
	files    core.Filesystem
	tracker  Tracker
	render   *format.PlainRenderer
	out      Output
	cfg      HandlerConfig
	guard    *core.Guard
	quit     bool
}

// NewHandler constructs a command handler.
func NewHandler(deps HandlerDeps, cfg HandlerConfig) (*Handler, error) {
	if deps.Registry == nil || deps.Commands == nil || deps.Files == nil || deps.Output == nil {
		return nil, errors.New("handler requires registry, commands, files and output")
	}
	if deps.Renderer == nil {
		deps.Renderer = format.NewPlainRenderer(format.TabStyle{})
	}
	if cfg.TreeDepth <= 0 {
		cfg.TreeDepth = defaultTreeDepth
	}
	return &Handler{
		registry: deps.Registry,
		commands: deps.Commands,
		files:    deps.Files,
		tracker:  deps.Tracker,
		render:   deps.Renderer,
		out:      deps.Output,
		cfg:      cfg,
	}, nil
}

// Pending reports whether an unsaved-changes prompt awaits an answer.
func (h *Handler) Pending() bool {
	return h.guard != nil && h.guard.State() == core.GuardPending
}

// Prompt returns the pending unsaved-changes question, if any.
func (h *Handler) Prompt() string {
	if !h.Pending() {
		return ""
	}
	return h.guard.Prompt()
}

// Quit reports whether the user confirmed leaving the session.
func (h *Handler) Quit() bool {
	return h.quit
}

// Handle executes one input line. While a prompt is pending the line is the answer.
func (h *Handler) Handle(ctx context.Context, input string) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	if h.Pending() {
		return h.decide(ctx, input)
	}
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	log := logx.Ctx(ctx).With("input_len", len(input))
	if strings.HasPrefix(trimmed, "!") {
		return h.handleShell(ctx, strings.TrimSpace(trimmed[1:]))
	}
	cmd, ok := Parse(input)
	if !ok {
		return h.handleShell(ctx, trimmed)
	}
	if !h.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "slash", "command", trimmed)
	}
	log = log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command slash request")
	switch cmd.Name {
	case "":
		log.Warn("command slash rejected", "reason", "empty")
		return fmt.Errorf("invalid command")
	case "open", "o":
		return h.handleOpen(ctx, cmd)
	case "new":
		h.registry.NewScratch(ctx)
		return nil
	case "tabs", "ls":
		h.out.AppendLines(h.render.TabList(h.registry.List())...)
		return nil
	case "switch", "b":
		return h.handleSwitch(ctx, cmd)
	case "close":
		return h.handleClose(ctx, cmd)
	case "save", "w":
		return h.handleSave(ctx, cmd)
	case "saveas":
		return h.handleSaveAs(ctx, cmd)
	case "show", "p":
		return h.handleShow(cmd)
	case "append", "a":
		return h.handleAppend(ctx, cmd)
	case "insert", "i":
		return h.handleLineEdit(ctx, cmd, "insert")
	case "set", "s":
		return h.handleLineEdit(ctx, cmd, "set")
	case "delete", "d":
		return h.handleLineEdit(ctx, cmd, "delete")
	case "revert":
		return h.handleRevert(ctx, cmd)
	case "tree":
		return h.handleTree(ctx, cmd)
	case "touch":
		return h.handleTouch(ctx, cmd)
	case "mkdir":
		return h.handleMkdir(ctx, cmd)
	case "rm":
		return h.handleRemove(ctx, cmd)
	case "pwd":
		h.out.AppendLines(h.commands.WorkingDir())
		return nil
	case "help", "?":
		h.out.AppendLines(helpLines()...)
		return nil
	case "quit", "q", "exit":
		return h.handleQuit(ctx)
	default:
		log.Warn("command slash rejected", "reason", "unknown")
		return fmt.Errorf("unknown command: /%s", cmd.Name)
	}
}

// HandleEvent renders a worker event on the session goroutine.
func (h *Handler) HandleEvent(ctx context.Context, event eventbus.Event) {
	switch event.Type {
	case eventbus.EventCommandOutput:
		h.out.AppendLines(h.render.CommandOutput(event.Output))
	case eventbus.EventCommandExit:
		h.out.AppendLines(h.render.CommandExit(event.Exit))
	case eventbus.EventFileChanged:
		h.handleFileChanged(ctx, event.FileChanged)
	}
}

// CheckExit reports schema.ErrUnsavedOnExit when dirty buffers remain.
func (h *Handler) CheckExit() error {
	dirty := h.registry.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	names := make([]string, 0, len(dirty))
	for _, snap := range dirty {
		names = append(names, string(snap.Name))
	}
	return fmt.Errorf("%w: %s", schema.ErrUnsavedOnExit, strings.Join(names, ", "))
}

func (h *Handler) decide(ctx context.Context, input string) error {
	decision, ok := schema.ParseDecision(input)
	if !ok {
		h.out.AppendLines(h.guard.Prompt())
		return nil
	}
	err := h.guard.Decide(ctx, decision)
	switch h.guard.State() {
	case core.GuardPending:
		h.out.AppendLines(h.guard.Prompt())
	case core.GuardCanceled:
		if err == nil {
			h.out.AppendLines("canceled")
		}
		h.guard = nil
	default:
		h.guard = nil
	}
	return err
}

// startGuard runs g and keeps it when it waits for a decision.
func (h *Handler) startGuard(ctx context.Context, g *core.Guard) error {
	err := g.Run(ctx)
	if g.State() == core.GuardPending {
		h.guard = g
		h.out.AppendLines(g.Prompt())
		return nil
	}
	return err
}

func (h *Handler) handleShell(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	inv, err := h.commands.Submit(ctx, core.SubmitRequest{CommandLine: line})
	if err != nil {
		return err
	}
	if inv.Local {
		h.out.AppendLines(inv.WorkingDir)
		return nil
	}
	h.out.AppendLines(h.render.CommandStart(inv))
	return nil
}

func (h *Handler) handleOpen(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("usage: /open <path>...")
	}
	return h.Open(ctx, cmd.Args...)
}

// Open opens paths relative to the working directory and tracks their files.
// It stops at the first failure.
func (h *Handler) Open(ctx context.Context, paths ...string) error {
	for _, arg := range paths {
		path, err := h.resolve(arg)
		if err != nil {
			return err
		}
		snap, err := h.registry.OpenPath(ctx, path)
		if err != nil {
			return err
		}
		h.track(ctx, snap.Path)
	}
	return nil
}

func (h *Handler) handleSwitch(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /switch <tab number|name>")
	}
	snap, err := h.target(cmd.Args)
	if err != nil {
		return err
	}
	snap, err = h.registry.SetActive(ctx, snap.ID)
	if err != nil {
		return err
	}
	h.out.AppendLines(fmt.Sprintf("active: %s", h.render.TabTitle(snap)))
	return nil
}

func (h *Handler) handleClose(ctx context.Context, cmd Command) error {
	snap, err := h.target(cmd.Args)
	if err != nil {
		return err
	}
	id := snap.ID
	guard := h.registry.Guard([]schema.BufferID{id}, func(ctx context.Context, discard bool) error {
		closed, err := h.registry.Close(ctx, id, discard)
		if err != nil {
			return err
		}
		h.untrack(ctx, closed.Path)
		return nil
	})
	return h.startGuard(ctx, guard)
}

func (h *Handler) handleSave(ctx context.Context, cmd Command) error {
	snap, err := h.target(cmd.Args)
	if err != nil {
		return err
	}
	_, err = h.registry.Save(ctx, snap.ID)
	return err
}

func (h *Handler) handleSaveAs(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /saveas <path>")
	}
	active, err := h.target(nil)
	if err != nil {
		return err
	}
	path, err := h.resolve(cmd.Args[0])
	if err != nil {
		return err
	}
	saved, err := h.registry.SaveAs(ctx, active.ID, path)
	if err != nil {
		return err
	}
	if active.Path != saved.Path {
		h.untrack(ctx, active.Path)
		h.track(ctx, saved.Path)
	}
	return nil
}

func (h *Handler) handleShow(cmd Command) error {
	snap, err := h.target(cmd.Args)
	if err != nil {
		return err
	}
	content, err := h.registry.Content(snap.ID)
	if err != nil {
		return err
	}
	h.out.AppendLines(h.render.BufferContent(snap, content)...)
	return nil
}

func (h *Handler) handleAppend(ctx context.Context, cmd Command) error {
	active, err := h.target(nil)
	if err != nil {
		return err
	}
	content, err := h.registry.Content(active.ID)
	if err != nil {
		return err
	}
	snap, err := h.registry.Edit(ctx, active.ID, appendLine(content, cmd.Remainder))
	if err != nil {
		return err
	}
	h.out.AppendLines(fmt.Sprintf("%s: %d lines", h.render.TabTitle(snap), snap.Lines))
	return nil
}

func (h *Handler) handleLineEdit(ctx context.Context, cmd Command, op string) error {
	if len(cmd.Args) == 0 {
		if op == "delete" {
			return fmt.Errorf("usage: /delete <line>")
		}
		return fmt.Errorf("usage: /%s <line> <text>", op)
	}
	n, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		return fmt.Errorf("invalid line number %q", cmd.Args[0])
	}
	active, err := h.target(nil)
	if err != nil {
		return err
	}
	content, err := h.registry.Content(active.ID)
	if err != nil {
		return err
	}
	text := remainderAfterTokens(cmd.Raw, 2)
	var next string
	switch op {
	case "insert":
		next, err = insertLine(content, n, text)
	case "set":
		next, err = setLine(content, n, text)
	default:
		next, err = deleteLine(content, n)
	}
	if err != nil {
		return err
	}
	snap, err := h.registry.Edit(ctx, active.ID, next)
	if err != nil {
		return err
	}
	h.out.AppendLines(fmt.Sprintf("%s: %d lines", h.render.TabTitle(snap), snap.Lines))
	return nil
}

func (h *Handler) handleRevert(ctx context.Context, cmd Command) error {
	snap, err := h.target(cmd.Args)
	if err != nil {
		return err
	}
	if snap.Scratch() {
		return schema.ErrNoBackingPath
	}
	id := snap.ID
	guard := h.registry.Guard([]schema.BufferID{id}, func(ctx context.Context, discard bool) error {
		reloaded, changed, err := h.registry.Reload(ctx, id, discard)
		if err != nil {
			return err
		}
		if !changed {
			h.out.AppendLines(fmt.Sprintf("%s is unchanged on disk", h.render.TabTitle(reloaded)))
		}
		return nil
	})
	return h.startGuard(ctx, guard)
}

func (h *Handler) handleTree(ctx context.Context, cmd Command) error {
	root := h.commands.WorkingDir()
	depth := h.cfg.TreeDepth
	if len(cmd.Args) > 0 {
		path, err := h.resolve(cmd.Args[0])
		if err != nil {
			return err
		}
		root = path
	}
	if len(cmd.Args) > 1 {
		n, err := strconv.Atoi(cmd.Args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid depth %q", cmd.Args[1])
		}
		depth = n
	}
	nodes, err := h.loadTree(ctx, root, depth)
	if err != nil {
		return &schema.IOError{Op: "list", Path: root, Err: err}
	}
	h.out.AppendLines(format.Tree(root, nodes)...)
	return nil
}

func (h *Handler) loadTree(ctx context.Context, dir string, depth int) ([]format.TreeNode, error) {
	entries, err := h.files.ListChildren(ctx, dir)
	if err != nil {
		return nil, err
	}
	nodes := make([]format.TreeNode, 0, len(entries))
	for _, entry := range entries {
		node := format.TreeNode{Entry: entry}
		if entry.IsDir {
			if depth > 1 {
				children, err := h.loadTree(ctx, entry.Path, depth-1)
				if err != nil {
					logx.WithPath(logx.Ctx(ctx), entry.Path).Debug("tree list skipped", "err", err)
				}
				node.Children = children
			} else {
				node.Truncated = true
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (h *Handler) handleTouch(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /touch <path>")
	}
	path, err := h.resolve(cmd.Args[0])
	if err != nil {
		return err
	}
	if err := h.files.CreateFile(ctx, path); err != nil {
		return &schema.IOError{Op: "create", Path: path, Err: err}
	}
	h.out.AppendLines(fmt.Sprintf("created %s", path))
	return nil
}

func (h *Handler) handleMkdir(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /mkdir <path>")
	}
	path, err := h.resolve(cmd.Args[0])
	if err != nil {
		return err
	}
	if err := h.files.CreateDirectory(ctx, path); err != nil {
		return &schema.IOError{Op: "mkdir", Path: path, Err: err}
	}
	h.out.AppendLines(fmt.Sprintf("created %s%c", path, filepath.Separator))
	return nil
}

func (h *Handler) handleRemove(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /rm <path>")
	}
	path, err := h.resolve(cmd.Args[0])
	if err != nil {
		return err
	}
	for _, snap := range h.registry.List() {
		if snap.Path == path || strings.HasPrefix(snap.Path, path+string(filepath.Separator)) {
			return fmt.Errorf("%s: close %s first: %w", path, snap.Name, schema.ErrPathOpen)
		}
	}
	if err := h.files.Delete(ctx, path); err != nil {
		return &schema.IOError{Op: "delete", Path: path, Err: err}
	}
	h.out.AppendLines(fmt.Sprintf("removed %s", path))
	return nil
}

func (h *Handler) handleQuit(ctx context.Context) error {
	guard := h.registry.GuardAll(func(ctx context.Context, discard bool) error {
		logx.Ctx(ctx).Info("session quit", "discarded", discard)
		h.quit = true
		return nil
	})
	return h.startGuard(ctx, guard)
}

func (h *Handler) handleFileChanged(ctx context.Context, event schema.FileChangedEvent) {
	snap, ok := h.registry.Lookup(event.Path)
	if !ok {
		return
	}
	log := logx.WithPath(logx.WithBuffer(ctx, snap.ID), snap.Path)
	switch event.Op {
	case schema.FileChangeRemoved:
		if _, err := h.files.ReadFile(ctx, snap.Path); err == nil {
			// Replaced by rename; the new file is reported as written.
			h.reloadClean(ctx, snap)
			return
		}
		log.Info("watched file removed")
		h.out.AppendLines(fmt.Sprintf("%s was removed on disk; /save to recreate it", h.render.TabTitle(snap)))
	case schema.FileChangeWritten:
		h.reloadClean(ctx, snap)
	}
}

func (h *Handler) reloadClean(ctx context.Context, snap schema.BufferSnapshot) {
	if snap.Dirty {
		saved, err := h.registry.SavedContent(snap.ID)
		if err != nil {
			return
		}
		data, err := h.files.ReadFile(ctx, snap.Path)
		if err != nil || string(data) == saved {
			return
		}
		h.out.AppendLines(fmt.Sprintf("%s changed on disk; /revert to discard your changes", h.render.TabTitle(snap)))
		return
	}
	if _, _, err := h.registry.Reload(ctx, snap.ID, false); err != nil {
		h.out.AppendLines(fmt.Sprintf("error: %v", err))
	}
}

// target resolves a buffer by 1-based tab number or name, defaulting to the active buffer.
func (h *Handler) target(args []string) (schema.BufferSnapshot, error) {
	if len(args) == 0 {
		active, ok := h.registry.Active()
		if !ok {
			return schema.BufferSnapshot{}, fmt.Errorf("no active buffer")
		}
		return active, nil
	}
	ref := strings.TrimSpace(args[0])
	tabs := h.registry.List()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tabs) {
			return schema.BufferSnapshot{}, fmt.Errorf("tab %d: %w", n, schema.ErrBufferNotFound)
		}
		return tabs[n-1], nil
	}
	for _, tab := range tabs {
		if string(tab.Name) == ref {
			return tab, nil
		}
	}
	if path, err := h.resolve(ref); err == nil {
		if snap, ok := h.registry.Lookup(path); ok {
			return snap, nil
		}
	}
	return schema.BufferSnapshot{}, fmt.Errorf("%s: %w", ref, schema.ErrBufferNotFound)
}

func (h *Handler) resolve(path string) (string, error) {
	return core.ResolvePath(h.commands.WorkingDir(), path)
}

func (h *Handler) track(ctx context.Context, path string) {
	if h.tracker == nil || path == "" {
		return
	}
	if err := h.tracker.Track(path); err != nil {
		logx.WithPath(logx.Ctx(ctx), path).Warn("watch track failed", "err", err)
	}
}

func (h *Handler) untrack(ctx context.Context, path string) {
	if h.tracker == nil || path == "" {
		return
	}
	if err := h.tracker.Untrack(path); err != nil {
		logx.WithPath(logx.Ctx(ctx), path).Warn("watch untrack failed", "err", err)
	}
}

func helpLines() []string {
	return []string{
		"Buffers:",
		"  /open <path>...        open files (re-selects an open file)",
		"  /new                   new scratch buffer",
		"  /tabs                  list buffers; * marks unsaved changes",
		"  /switch <n|name>       activate a buffer",
		"  /close [n|name]        close a buffer",
		"  /save [n|name]         save a buffer",
		"  /saveas <path>         save the active buffer under a new path",
		"  /revert [n|name]       reload a buffer from disk",
		"Editing the active buffer:",
		"  /show [n|name]         print with line numbers",
		"  /append <text>         add a line at the end",
		"  /insert <line> <text>  insert before a line",
		"  /set <line> <text>     replace a line",
		"  /delete <line>         delete a line",
		"Files:",
		"  /tree [path] [depth]   show the directory tree",
		"  /touch <path>          create an empty file",
		"  /mkdir <path>          create a directory",
		"  /rm <path>             delete a file or directory",
		"Shell:",
		"  <command> or !<command> run through the shell in the working directory",
		"  cd [dir]               change the working directory",
		"  /pwd                   print the working directory",
		"  /quit                  leave (asks about unsaved buffers)",
	}
}
