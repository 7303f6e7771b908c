package sshserver

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
)

// AuthorizedKeys authorizes public keys listed in an OpenSSH authorized_keys
// file. The file is re-read when its size or modification time changes.
type AuthorizedKeys struct {
	path string
	log  pslog.Logger

	mu    sync.RWMutex
	keys  map[string]string
	state fileState
}

type fileState struct {
	modTime time.Time
	size    int64
}

func fileStateFromInfo(info os.FileInfo) fileState {
	return fileState{modTime: info.ModTime(), size: info.Size()}
}

func (s fileState) equal(other fileState) bool {
	return s.size == other.size && s.modTime.Equal(other.modTime)
}

// LoadAuthorizedKeys reads path. Unparseable lines are skipped with a warning.
func LoadAuthorizedKeys(path string, logger pslog.Logger) (*AuthorizedKeys, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorized keys path is required")
	}
	a := &AuthorizedKeys{path: path, log: logger}
	if err := a.loadFromDisk(); err != nil {
		return nil, err
	}
	return a, nil
}

// Len returns the number of authorized keys.
func (a *AuthorizedKeys) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// Authorized reports whether key is listed, and its comment.
func (a *AuthorizedKeys) Authorized(key ssh.PublicKey) (string, bool, error) {
	if key == nil {
		return "", false, nil
	}
	if err := a.refreshIfNeeded(); err != nil {
		return "", false, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	comment, ok := a.keys[string(key.Marshal())]
	return comment, ok, nil
}

func (a *AuthorizedKeys) refreshIfNeeded() error {
	info, err := os.Stat(a.path)
	if err != nil {
		if a.log != nil {
			a.log.Warn("authorized keys stat failed", "path", a.path, "err", err)
		}
		return err
	}
	a.mu.RLock()
	current := a.state
	a.mu.RUnlock()
	if current.equal(fileStateFromInfo(info)) {
		return nil
	}
	return a.loadFromDisk()
}

func (a *AuthorizedKeys) loadFromDisk() error {
	info, err := os.Stat(a.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		if a.log != nil {
			a.log.Warn("authorized keys load failed", "path", a.path, "err", err)
		}
		return err
	}
	keys, skipped := parseAuthorizedKeys(data)
	a.mu.Lock()
	a.keys = keys
	a.state = fileStateFromInfo(info)
	a.mu.Unlock()
	if a.log != nil {
		if skipped > 0 {
			a.log.Warn("authorized keys lines skipped", "path", a.path, "skipped", skipped)
		}
		a.log.Debug("authorized keys load ok", "path", a.path, "keys", len(keys))
	}
	return nil
}

func parseAuthorizedKeys(data []byte) (map[string]string, int) {
	keys := make(map[string]string)
	skipped := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			skipped++
			continue
		}
		keys[string(key.Marshal())] = comment
	}
	return keys, skipped
}
