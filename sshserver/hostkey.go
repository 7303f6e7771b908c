package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/crypto/ssh"
)

const hostKeyComment = "idemy"

// HostKey is the server identity and whether it was generated on this start.
type HostKey struct {
	Signer  ssh.Signer
	Created bool
}

// Fingerprint returns the SHA256 fingerprint clients see on first connect.
func (h HostKey) Fingerprint() string {
	if h.Signer == nil {
		return ""
	}
	return ssh.FingerprintSHA256(h.Signer.PublicKey())
}

// EnsureHostKey loads the ed25519 host key at path, generating it on first use.
// An existing key readable by group or others is rejected on unix.
func EnsureHostKey(path string) (HostKey, error) {
	if strings.TrimSpace(path) == "" {
		return HostKey{}, errors.New("ssh host key path is required")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return HostKey{}, fmt.Errorf("host key %s is a directory", path)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
			return HostKey{}, fmt.Errorf("host key %s must not be accessible by other users (mode %04o)", path, info.Mode().Perm())
		}
		signer, err := loadHostKey(path)
		if err != nil {
			return HostKey{}, err
		}
		return HostKey{Signer: signer}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return HostKey{}, fmt.Errorf("stat host key: %w", err)
	}

	signer, err := generateHostKey(path)
	if err != nil {
		return HostKey{}, err
	}
	return HostKey{Signer: signer, Created: true}, nil
}

func generateHostKey(path string) (ssh.Signer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, hostKeyComment)
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	if err := pem.Encode(file, block); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("encode host key: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("close host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}

func loadHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse host key %s: %w", path, err)
	}
	return signer, nil
}
