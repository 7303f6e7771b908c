package eventbus

import (
	"context"
	"sync"

	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventCommandOutput carries one line of command output.
	EventCommandOutput EventType = "command_output"
	// EventCommandExit carries the terminal notification of a command.
	EventCommandExit EventType = "command_exit"
	// EventFileChanged carries an external change to an open file.
	EventFileChanged EventType = "file_changed"
)

// Event is a worker result handed to a session's owner goroutine.
type Event struct {
	Type        EventType
	Output      schema.CommandOutputEvent
	Exit        schema.CommandExitEvent
	FileChanged schema.FileChangedEvent
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// Bus delivers events from worker goroutines to per-session subscribers.
// Publishing blocks while a subscriber's buffer is full; events are never dropped.
type Bus struct {
	mu    sync.Mutex
	subs  map[string]map[*subscriber]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[string]map[*subscriber]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the session and returns a channel + cancel.
// After cancel, pending publishers to this subscriber return without delivering.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	sub := &subscriber{
		ch:   make(chan Event, b.depth),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	if sessionSubs == nil {
		sessionSubs = make(map[*subscriber]struct{})
		b.subs[sessionID] = sessionSubs
	}
	sessionSubs[sub] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	b.log.With("session", sessionID).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[sessionID]; subs != nil {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(b.subs, sessionID)
				}
			}
			b.mu.Unlock()
			close(sub.done)
			b.log.With("session", sessionID).Debug("eventbus unsubscribe")
		})
	}
}

// Publisher returns the sink for one session. It implements core.CommandListener.
func (b *Bus) Publisher(sessionID string) *Publisher {
	return &Publisher{bus: b, session: sessionID}
}

// Publisher publishes worker events for one session.
type Publisher struct {
	bus     *Bus
	session string
}

// OnCommandOutput publishes a command output line.
func (p *Publisher) OnCommandOutput(event schema.CommandOutputEvent) {
	p.bus.publish(p.session, Event{Type: EventCommandOutput, Output: event})
}

// OnCommandExit publishes a command exit notification.
func (p *Publisher) OnCommandExit(event schema.CommandExitEvent) {
	p.bus.publish(p.session, Event{Type: EventCommandExit, Exit: event})
}

// OnFileChanged publishes an external file change.
func (p *Publisher) OnFileChanged(event schema.FileChangedEvent) {
	p.bus.publish(p.session, Event{Type: EventFileChanged, FileChanged: event})
}

func (b *Bus) publish(sessionID string, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	subs := make([]*subscriber, 0, len(sessionSubs))
	for sub := range sessionSubs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		b.log.With("session", sessionID).Trace("eventbus no subscribers", "type", event.Type)
		return
	}
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		case <-sub.done:
		}
	}
}
