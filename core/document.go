package core

import (
	"strings"

	"pkt.systems/idemy/schema"
)

// document is one open editable unit. It owns the saved and live content;
// dirty state is always derived from the two.
type document struct {
	id    schema.BufferID
	name  schema.BufferName
	path  string
	// key is path with symlinks resolved; it indexes Registry.byPath.
	key   string
	saved string
	live  string
}

// Dirty reports whether live content differs from the last saved or loaded snapshot.
func (d *document) Dirty() bool {
	return d.live != d.saved
}

// Snapshot returns a transport-friendly view of the document.
func (d *document) Snapshot(active bool) schema.BufferSnapshot {
	return schema.BufferSnapshot{
		ID:     d.id,
		Name:   d.name,
		Path:   d.path,
		Dirty:  d.Dirty(),
		Active: active,
		Lines:  countLines(d.live),
	}
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}
