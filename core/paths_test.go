package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/idemy/schema"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	cases := []struct {
		base string
		path string
		want string
	}{
		{"/project", "a.txt", "/project/a.txt"},
		{"/project", "./src/../a.txt", "/project/a.txt"},
		{"/project/sub", "..", "/project"},
		{"/project", "/etc/hosts", "/etc/hosts"},
		{"/project", "~/notes.txt", filepath.Join(home, "notes.txt")},
		{"/project", "~", home},
	}
	for _, tc := range cases {
		got, err := ResolvePath(tc.base, tc.path)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.path, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %q: expected %q, got %q", tc.path, tc.want, got)
		}
	}
}

func TestResolvePathRejectsEmpty(t *testing.T) {
	if _, err := ResolvePath("/project", "  "); !errors.Is(err, schema.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestRelativeName(t *testing.T) {
	if got := RelativeName("/project", "/project/src/a.go"); got != filepath.Join("src", "a.go") {
		t.Fatalf("unexpected relative name %q", got)
	}
	if got := RelativeName("/project", "/other/a.go"); got != "/other/a.go" {
		t.Fatalf("expected outside path unchanged, got %q", got)
	}
}
