package schema

import "time"

// BufferEventType describes a buffer lifecycle change.
type BufferEventType string

const (
	// BufferEventOpened indicates a buffer was created from a file or as scratch.
	BufferEventOpened BufferEventType = "opened"
	// BufferEventEdited indicates live content changed.
	BufferEventEdited BufferEventType = "edited"
	// BufferEventSaved indicates live content was persisted.
	BufferEventSaved BufferEventType = "saved"
	// BufferEventReloaded indicates content was re-read from disk.
	BufferEventReloaded BufferEventType = "reloaded"
	// BufferEventActivated indicates the active buffer changed.
	BufferEventActivated BufferEventType = "activated"
	// BufferEventClosed indicates a buffer was removed.
	BufferEventClosed BufferEventType = "closed"
)

// BufferEvent notifies the UI surface that a buffer changed.
type BufferEvent struct {
	Type   BufferEventType
	Buffer BufferSnapshot
	// Active is the active buffer after the change; empty when none is active.
	Active BufferID
}

// CommandOutputEvent carries one line produced by a running command.
type CommandOutputEvent struct {
	CommandID CommandID
	Stream    StreamKind
	Text      string
}

// CommandExitEvent is the terminal notification for a command invocation.
// It is emitted only after both output streams were drained.
type CommandExitEvent struct {
	CommandID CommandID
	ExitCode  int
	Duration  time.Duration
	// Err is set when the output stream or wait failed.
	Err error
}

// FileChangeOp describes a change observed on disk.
type FileChangeOp string

const (
	// FileChangeWritten indicates the file content was written or recreated.
	FileChangeWritten FileChangeOp = "written"
	// FileChangeRemoved indicates the file was removed or renamed away.
	FileChangeRemoved FileChangeOp = "removed"
)

// FileChangedEvent reports an external change to a watched file.
type FileChangedEvent struct {
	Path string
	Op   FileChangeOp
}
