package sshserver

// Config defines SSH server settings.
type Config struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	// RequirePTY rejects sessions without a terminal instead of serving them
	// with plain line I/O.
	RequirePTY bool
}
