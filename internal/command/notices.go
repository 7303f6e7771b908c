package command

import (
	"pkt.systems/idemy/internal/format"
	"pkt.systems/idemy/schema"
)

// Notices renders registry events as user-facing lines. It implements
// core.BufferSink and is called on the registry owner goroutine.
type Notices struct {
	out    Output
	render *format.PlainRenderer
	dirty  map[schema.BufferID]bool
}

// NewNotices constructs a buffer event renderer.
func NewNotices(out Output, render *format.PlainRenderer) *Notices {
	return &Notices{out: out, render: render, dirty: make(map[schema.BufferID]bool)}
}

// OnBufferEvent renders a buffer event. Edits only render when the tab title
// changes, i.e. when the dirty marker appears or disappears.
func (n *Notices) OnBufferEvent(event schema.BufferEvent) {
	id := event.Buffer.ID
	was := n.dirty[id]
	if event.Type == schema.BufferEventClosed {
		delete(n.dirty, id)
	} else {
		n.dirty[id] = event.Buffer.Dirty
	}
	if event.Type == schema.BufferEventEdited {
		if was != event.Buffer.Dirty {
			n.out.AppendLines("[" + n.render.TabTitle(event.Buffer) + "]")
		}
		return
	}
	if lines := n.render.BufferEvent(event); len(lines) > 0 {
		n.out.AppendLines(lines...)
	}
}
