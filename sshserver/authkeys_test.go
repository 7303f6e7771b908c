package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func authorizedLine(signer ssh.Signer, comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
	if comment != "" {
		line += " " + comment
	}
	return line
}

func TestAuthorizedKeysMatches(t *testing.T) {
	allowed := newTestSigner(t)
	other := newTestSigner(t)
	path := filepath.Join(t.TempDir(), "authorized_keys")
	content := strings.Join([]string{
		"# team keys",
		"",
		authorizedLine(allowed, "dev@laptop"),
		"ssh-ed25519 not-base64",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	keys, err := LoadAuthorizedKeys(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if keys.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", keys.Len())
	}
	comment, ok, err := keys.Authorized(allowed.PublicKey())
	if err != nil || !ok || comment != "dev@laptop" {
		t.Fatalf("expected allowed key, got %q %v %v", comment, ok, err)
	}
	if _, ok, err := keys.Authorized(other.PublicKey()); err != nil || ok {
		t.Fatalf("expected other key rejected, got %v %v", ok, err)
	}
}

func TestAuthorizedKeysReloadsOnChange(t *testing.T) {
	first := newTestSigner(t)
	second := newTestSigner(t)
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, []byte(authorizedLine(first, "")+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	keys, err := LoadAuthorizedKeys(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	content := authorizedLine(first, "") + "\n" + authorizedLine(second, "added") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, ok, err := keys.Authorized(second.PublicKey()); err != nil || !ok {
		t.Fatalf("expected reloaded key to be authorized, got %v %v", ok, err)
	}
}

func TestLoadAuthorizedKeysMissingFile(t *testing.T) {
	if _, err := LoadAuthorizedKeys(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
