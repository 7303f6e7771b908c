package schema

// BufferSnapshot is a read-only view of a buffer for the UI surface.
type BufferSnapshot struct {
	ID     BufferID
	Name   BufferName
	Path   string
	Dirty  bool
	Active bool
	Lines  int
}

// Scratch reports whether the buffer has no backing file.
func (b BufferSnapshot) Scratch() bool {
	return b.Path == ""
}
