package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/internal/console"
	"pkt.systems/idemy/internal/eventbus"
	"pkt.systems/idemy/internal/logx"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// KeyAuthorizer decides which public keys may open sessions.
type KeyAuthorizer interface {
	Authorized(key ssh.PublicKey) (string, bool, error)
}

// Server exposes console sessions over SSH. Every connection gets its own
// buffers and working directory over the shared project root.
type Server struct {
	Config   Config
	Listener net.Listener
	Keys     KeyAuthorizer
	Console  console.Config
	Files    core.Filesystem
	Runner   core.Runner
	EventBus *eventbus.Bus
	logger   pslog.Logger
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Keys == nil {
		return errors.New("authorized keys are required for SSH")
	}
	if s.Files == nil || s.Runner == nil {
		return errors.New("ssh server requires files and runner")
	}
	if s.EventBus == nil {
		s.EventBus = eventbus.New(s.logger)
	}

	hostKey, err := EnsureHostKey(s.Config.HostKeyPath)
	if err != nil {
		return err
	}
	s.logger.Info("ssh host key ready", "path", s.Config.HostKeyPath, "fingerprint", hostKey.Fingerprint(), "created", hostKey.Created)

	server := &gliderssh.Server{
		Addr:             s.Config.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(hostKey.Signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			s.logger.Info("ssh listening", "addr", s.Listener.Addr().String())
			errCh <- server.Serve(s.Listener)
			return
		}
		s.logger.Info("ssh listening", "addr", s.Config.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	log = log.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", ssh.FingerprintSHA256(key))
	comment, ok, err := s.Keys.Authorized(key)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !ok {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	log.Info("ssh pubkey accepted", "key_comment", comment)
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	sessionID := uuid.NewString()
	log = log.With("user", sess.User(), "remote", sess.RemoteAddr().String(), "session", sessionID)
	ctx := logx.ContextWithSessionLogger(sess.Context(), log, sessionID)

	if len(sess.Command()) > 0 {
		log.Info("ssh session rejected", "reason", "exec not supported")
		_, _ = io.WriteString(sess.Stderr(), "idemy serves interactive sessions only\n")
		_ = sess.Exit(2)
		return
	}

	pty, winCh, isPty := sess.Pty()
	if !isPty && s.Config.RequirePTY {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\n")
		_ = sess.Exit(1)
		return
	}

	var lineIO console.LineIO
	if isPty {
		tio := console.NewTerminalIO(sess, s.Console.Prompt)
		_ = tio.SetSize(pty.Window.Width, pty.Window.Height)
		go followWindow(ctx, tio, winCh)
		lineIO = tio
		log.Info("ssh session opened", "term", pty.Term, "width", pty.Window.Width, "height", pty.Window.Height)
	} else {
		lineIO = console.NewStreamIO(sess, sess)
		log.Info("ssh session opened", "term", "none")
	}

	ui, err := console.New(sessionID, lineIO, s.Console, console.Deps{
		Files:  s.Files,
		Runner: s.Runner,
		Bus:    s.EventBus,
		Logger: log,
	})
	if err != nil {
		log.Warn("ssh session setup failed", "err", err)
		_, _ = fmt.Fprintf(sess, "error: %v\n", err)
		_ = sess.Exit(1)
		return
	}
	err = ui.Run(ctx)
	log.Info("ssh session closed", "err", err)
	_ = sess.Exit(exitStatus(err))
}

func followWindow(ctx context.Context, tio *console.TerminalIO, winCh <-chan gliderssh.Window) {
	for {
		select {
		case <-ctx.Done():
			return
		case win, ok := <-winCh:
			if !ok {
				return
			}
			_ = tio.SetSize(win.Width, win.Height)
		}
	}
}

func exitStatus(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, schema.ErrUnsavedOnExit):
		return 3
	default:
		return 1
	}
}
