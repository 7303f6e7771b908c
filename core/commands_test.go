package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/idemy/schema"
)

func newTestCommandRunner(t *testing.T, root string, runner Runner) (*CommandRunner, *recordListener) {
	t.Helper()
	listener := &recordListener{}
	cr, err := NewCommandRunner(schema.WorkspaceConfig{ProjectRoot: root}, CommandRunnerDeps{
		Runner:   runner,
		Listener: listener,
	})
	if err != nil {
		t.Fatalf("new command runner: %v", err)
	}
	return cr, listener
}

func TestSubmitStreamsThenExits(t *testing.T) {
	root := t.TempDir()
	runner := &fakeRunner{
		outputs: []CommandOutput{
			{Stream: schema.StreamStdout, Text: "hi"},
			{Stream: schema.StreamStderr, Text: "warn"},
			{Stream: schema.StreamStdout, Text: ""},
		},
		result: RunResult{ExitCode: 3},
	}
	cr, listener := newTestCommandRunner(t, root, runner)

	inv, err := cr.Submit(context.Background(), SubmitRequest{CommandLine: "  echo hi  "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	cr.Wait()

	if inv.Local || inv.WorkingDir != root || inv.CommandLine != "echo hi" {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if len(runner.requests) != 1 || runner.requests[0].WorkingDir != root || runner.requests[0].Command != "echo hi" {
		t.Fatalf("unexpected runner request: %+v", runner.requests)
	}
	if len(listener.outputs) != 3 {
		t.Fatalf("expected 3 output lines, got %d", len(listener.outputs))
	}
	if listener.outputs[1].Stream != schema.StreamStderr || listener.outputs[1].Text != "warn" {
		t.Fatalf("unexpected stderr line: %+v", listener.outputs[1])
	}
	if len(listener.exits) != 1 || listener.exits[0].ExitCode != 3 || listener.exits[0].Err != nil {
		t.Fatalf("unexpected exit: %+v", listener.exits)
	}
	if listener.order[len(listener.order)-1] != "exit" {
		t.Fatalf("expected exit notification last, got %v", listener.order)
	}
	for _, event := range append(listener.outputs, schema.CommandOutputEvent{CommandID: listener.exits[0].CommandID}) {
		if event.CommandID != inv.ID {
			t.Fatalf("expected command id %q, got %q", inv.ID, event.CommandID)
		}
	}
}

func TestSubmitLaunchErrors(t *testing.T) {
	root := t.TempDir()
	cases := []struct {
		name string
		err  error
		kind RunnerErrorKind
	}{
		{"shell", schema.ErrShellUnavailable, RunnerErrorShellUnavailable},
		{"launch", errors.New("chdir: no such file"), RunnerErrorLaunch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cr, listener := newTestCommandRunner(t, root, &fakeRunner{startErr: tc.err})
			_, err := cr.Submit(context.Background(), SubmitRequest{CommandLine: "ls"})
			var runnerErr *RunnerError
			if !errors.As(err, &runnerErr) || runnerErr.Kind != tc.kind {
				t.Fatalf("expected %s runner error, got %v", tc.kind, err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected wrapped cause")
			}
			cr.Wait()
			if len(listener.exits) != 0 {
				t.Fatalf("launch failure must not be streamed")
			}
		})
	}
}

func TestSubmitEmpty(t *testing.T) {
	cr, _ := newTestCommandRunner(t, t.TempDir(), &fakeRunner{})
	if _, err := cr.Submit(context.Background(), SubmitRequest{CommandLine: "   "}); !errors.Is(err, schema.ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestWaitFailureReportsMinusOne(t *testing.T) {
	cr, listener := newTestCommandRunner(t, t.TempDir(), &fakeRunner{waitErr: errors.New("wait failed")})
	if _, err := cr.Submit(context.Background(), SubmitRequest{CommandLine: "true"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cr.Wait()
	if len(listener.exits) != 1 || listener.exits[0].ExitCode != -1 || listener.exits[0].Err == nil {
		t.Fatalf("unexpected exit: %+v", listener.exits)
	}
}

func TestChangeDirectory(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "a")
	b := filepath.Join(a, "b")
	if err := os.MkdirAll(b, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(a, "file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runner := &fakeRunner{}
	cr, _ := newTestCommandRunner(t, base, runner)
	ctx := context.Background()

	if _, err := cr.Submit(ctx, SubmitRequest{CommandLine: "cd a/b"}); err != nil {
		t.Fatalf("cd a/b: %v", err)
	}
	if cr.WorkingDir() != b {
		t.Fatalf("expected %q, got %q", b, cr.WorkingDir())
	}
	inv, err := cr.Submit(ctx, SubmitRequest{CommandLine: "cd .."})
	if err != nil {
		t.Fatalf("cd ..: %v", err)
	}
	if !inv.Local || inv.WorkingDir != a || cr.WorkingDir() != a {
		t.Fatalf("expected %q, got %+v", a, inv)
	}

	_, err = cr.Submit(ctx, SubmitRequest{CommandLine: "cd nosuch"})
	var runnerErr *RunnerError
	if !errors.As(err, &runnerErr) || runnerErr.Kind != RunnerErrorDirectoryNotFound {
		t.Fatalf("expected directory_not_found, got %v", err)
	}
	if !errors.Is(err, schema.ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound")
	}
	if cr.WorkingDir() != a {
		t.Fatalf("expected working dir unchanged, got %q", cr.WorkingDir())
	}
	if _, err := cr.Submit(ctx, SubmitRequest{CommandLine: "cd file"}); !errors.Is(err, schema.ErrDirectoryNotFound) {
		t.Fatalf("expected file target rejected, got %v", err)
	}

	if _, err := cr.Submit(ctx, SubmitRequest{CommandLine: "cd " + b}); err != nil {
		t.Fatalf("cd absolute: %v", err)
	}
	if cr.WorkingDir() != b {
		t.Fatalf("expected absolute cd, got %q", cr.WorkingDir())
	}
	if _, err := cr.Submit(ctx, SubmitRequest{CommandLine: "cd"}); err != nil {
		t.Fatalf("cd: %v", err)
	}
	if cr.WorkingDir() != base {
		t.Fatalf("expected bare cd to return to root, got %q", cr.WorkingDir())
	}
	if len(runner.requests) != 0 {
		t.Fatalf("cd must not spawn processes")
	}
}

func TestParseChangeDirectory(t *testing.T) {
	cases := []struct {
		line   string
		target string
		ok     bool
	}{
		{"cd", "", true},
		{"cd ..", "..", true},
		{`cd "my dir"`, "my dir", true},
		{"cdrom", "", false},
		{"echo cd", "", false},
		{"cd sub && echo hi", "", false},
		{"cd sub; ls", "", false},
		{"cd $HOME", "", false},
		{"cd a b", "", false},
		{`cd "unterminated`, "", false},
	}
	for _, tc := range cases {
		target, ok := parseChangeDirectory(tc.line)
		if ok != tc.ok || target != tc.target {
			t.Fatalf("%q: expected (%q, %v), got (%q, %v)", tc.line, tc.target, tc.ok, target, ok)
		}
	}
}

func TestSubmitCompoundCdLineRunsInShell(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	runner := &fakeRunner{}
	cr, listener := newTestCommandRunner(t, root, runner)

	inv, err := cr.Submit(context.Background(), SubmitRequest{CommandLine: "cd sub && echo hi"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	cr.Wait()
	if inv.Local {
		t.Fatalf("expected compound line to be spawned, got local %+v", inv)
	}
	if len(runner.requests) != 1 || runner.requests[0].Command != "cd sub && echo hi" || runner.requests[0].WorkingDir != root {
		t.Fatalf("unexpected runner request: %+v", runner.requests)
	}
	if cr.WorkingDir() != root {
		t.Fatalf("expected working dir unchanged, got %q", cr.WorkingDir())
	}
	if len(listener.exits) != 1 {
		t.Fatalf("expected one exit, got %+v", listener.exits)
	}
}

func TestSubmitCdUsesRequestWorkingDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	runner := &fakeRunner{}
	cr, _ := newTestCommandRunner(t, root, runner)

	inv, err := cr.Submit(context.Background(), SubmitRequest{CommandLine: "cd ..", WorkingDir: nested})
	if err != nil {
		t.Fatalf("cd ..: %v", err)
	}
	want := filepath.Join(root, "a")
	if !inv.Local || inv.WorkingDir != want || cr.WorkingDir() != want {
		t.Fatalf("expected %q, got %+v (cwd %q)", want, inv, cr.WorkingDir())
	}
	if len(runner.requests) != 0 {
		t.Fatalf("cd must not spawn processes")
	}
}
