package schema

// BufferID identifies an open buffer. Each buffer maps to exactly one tab.
type BufferID string

// BufferName is the user-facing name of a buffer (file base name or Untitled-N).
type BufferName string

// CommandID identifies a submitted command invocation.
type CommandID string

// StreamKind indicates which process stream produced a line.
type StreamKind string

const (
	// StreamStdout marks output captured from stdout.
	StreamStdout StreamKind = "stdout"
	// StreamStderr marks output captured from stderr.
	StreamStderr StreamKind = "stderr"
)

// CommandInvocation describes one submitted command line.
type CommandInvocation struct {
	ID          CommandID
	WorkingDir  string
	CommandLine string
	// Local is true when the line was interpreted in-process (cd) and nothing was spawned.
	Local bool
}

// Entry is a single child of a directory listing.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}
