package sshserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/internal/console"
	"pkt.systems/idemy/internal/filestore"
	"pkt.systems/idemy/schema"
)

type nopRunner struct{}

func (nopRunner) RunCommand(ctx context.Context, req core.RunCommandRequest) (core.CommandHandle, error) {
	_ = ctx
	_ = req
	return nopHandle{}, nil
}

type nopHandle struct{}

func (nopHandle) Outputs() core.CommandStream { return nopHandle{} }

func (nopHandle) Next(ctx context.Context) (core.CommandOutput, error) {
	_ = ctx
	return core.CommandOutput{}, io.EOF
}

func (nopHandle) Wait(ctx context.Context) (core.RunResult, error) {
	_ = ctx
	return core.RunResult{}, nil
}

func (nopHandle) Close() error { return nil }

func startServer(t *testing.T, root string, allowed ssh.Signer) string {
	t.Helper()
	dir := t.TempDir()
	keysPath := filepath.Join(dir, "authorized_keys")
	if err := os.WriteFile(keysPath, []byte(authorizedLine(allowed, "test")+"\n"), 0o600); err != nil {
		t.Fatalf("write keys: %v", err)
	}
	keys, err := LoadAuthorizedKeys(keysPath, nil)
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &Server{
		Config:   Config{HostKeyPath: filepath.Join(dir, "host_key")},
		Listener: ln,
		Keys:     keys,
		Console:  console.Config{Workspace: schema.WorkspaceConfig{ProjectRoot: root}},
		Files:    filestore.New(),
		Runner:   nopRunner{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return ln.Addr().String()
}

func dial(addr string, signer ssh.Signer) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "dev",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestServerRunsConsoleSession(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	signer := newTestSigner(t)
	addr := startServer(t, root, signer)

	client, err := dial(addr, signer)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = client.Close() }()
	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer func() { _ = sess.Close() }()
	var out bytes.Buffer
	sess.Stdout = &out
	sess.Stdin = strings.NewReader("/open main.go\n/show\n/quit\n")
	if err := sess.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("wait: %v\n%s", err, out.String())
	}
	for _, want := range []string{"opened main.go (1 lines)", "1 | package main"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestServerReportsUnsavedExit(t *testing.T) {
	signer := newTestSigner(t)
	addr := startServer(t, t.TempDir(), signer)
	client, err := dial(addr, signer)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = client.Close() }()
	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer func() { _ = sess.Close() }()
	sess.Stdin = strings.NewReader("/new\n/append draft\n")
	sess.Stdout = io.Discard
	if err := sess.Shell(); err != nil {
		t.Fatalf("shell: %v", err)
	}
	err = sess.Wait()
	exitErr, ok := err.(*ssh.ExitError)
	if !ok || exitErr.ExitStatus() != 3 {
		t.Fatalf("expected exit status 3, got %v", err)
	}
}

func TestServerRejectsUnknownKey(t *testing.T) {
	addr := startServer(t, t.TempDir(), newTestSigner(t))
	if client, err := dial(addr, newTestSigner(t)); err == nil {
		_ = client.Close()
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: 0},
		{err: schema.ErrUnsavedOnExit, want: 3},
		{err: io.ErrUnexpectedEOF, want: 1},
	}
	for _, tc := range tests {
		if got := exitStatus(tc.err); got != tc.want {
			t.Fatalf("exitStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
