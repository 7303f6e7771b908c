package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New()
	ctx := context.Background()
	path := filepath.Join(dir, "nested", "a.txt")

	if err := store.WriteFile(ctx, path, []byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := store.ReadFile(ctx, path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("unexpected content %q", data)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left, got %d entries", len(entries))
	}
}

func TestWriteKeepsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permissions differ on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := New().WriteFile(context.Background(), path, []byte("#!/bin/sh\necho hi\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %v", info.Mode().Perm())
	}
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()
	store := New()
	if _, err := store.ReadFile(context.Background(), filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
	if _, err := store.ReadFile(context.Background(), dir); err == nil {
		t.Fatalf("expected error reading a directory")
	}
}

func TestCreateFileRejectsExisting(t *testing.T) {
	dir := t.TempDir()
	store := New()
	ctx := context.Background()
	path := filepath.Join(dir, "new.txt")
	if err := store.CreateFile(ctx, path); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateFile(ctx, path); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected exists error, got %v", err)
	}
}

func TestListChildrenDirectoriesFirst(t *testing.T) {
	dir := t.TempDir()
	store := New()
	ctx := context.Background()
	for _, name := range []string{"b.txt", "A.txt"} {
		if err := store.CreateFile(ctx, filepath.Join(dir, name)); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if err := store.CreateDirectory(ctx, filepath.Join(dir, "zdir")); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	entries, err := store.ListChildren(ctx, dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"zdir", "A.txt", "b.txt"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("entry %d: expected %s, got %s", i, name, entries[i].Name)
		}
	}
	if !entries[0].IsDir || entries[1].IsDir {
		t.Fatalf("unexpected dir flags: %+v", entries)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	store := New()
	ctx := context.Background()
	sub := filepath.Join(dir, "sub")
	if err := store.CreateFile(ctx, filepath.Join(sub, "x.txt")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, sub); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(sub); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected directory removed")
	}
	if err := store.Delete(ctx, sub); err == nil {
		t.Fatalf("expected error deleting missing path")
	}
	if err := store.Delete(ctx, "/"); err == nil {
		t.Fatalf("expected root delete rejected")
	}
}
