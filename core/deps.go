package core

import "pkt.systems/pslog"

// RegistryDeps captures collaborators for the document registry.
type RegistryDeps struct {
	Filesystem Filesystem
	Sink       BufferSink
	Logger     pslog.Logger
}

// CommandRunnerDeps captures collaborators for the command runner.
type CommandRunnerDeps struct {
	Runner   Runner
	Listener CommandListener
	Logger   pslog.Logger
}
