package core

import "pkt.systems/idemy/schema"

// BufferSink receives buffer lifecycle events from the registry.
type BufferSink interface {
	OnBufferEvent(event schema.BufferEvent)
}

// CommandListener receives output and completion of command invocations.
// Calls arrive on worker goroutines; implementations hand them to the UI goroutine.
type CommandListener interface {
	OnCommandOutput(event schema.CommandOutputEvent)
	OnCommandExit(event schema.CommandExitEvent)
}

// EventSink receives every event the core emits.
type EventSink interface {
	BufferSink
	CommandListener
}
