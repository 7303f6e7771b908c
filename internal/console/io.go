package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/term"
)

// LineIO reads input lines and writes output lines for a session. ReadLine is
// called from a dedicated reader goroutine; the other methods from the session
// goroutine.
type LineIO interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
	WriteLines(lines ...string)
}

// TerminalIO is line editing on an interactive terminal or SSH channel.
type TerminalIO struct {
	term *term.Terminal
}

// NewTerminalIO wraps rw, which must already be in raw mode.
func NewTerminalIO(rw io.ReadWriter, prompt string) *TerminalIO {
	return &TerminalIO{term: term.NewTerminal(rw, prompt)}
}

// ReadLine reads one edited line.
func (t *TerminalIO) ReadLine() (string, error) {
	return t.term.ReadLine()
}

// SetPrompt replaces the prompt shown while editing.
func (t *TerminalIO) SetPrompt(prompt string) {
	t.term.SetPrompt(prompt)
}

// WriteLines writes lines above the prompt.
func (t *TerminalIO) WriteLines(lines ...string) {
	for _, line := range lines {
		_, _ = io.WriteString(t.term, line+"\n")
	}
}

// SetSize updates the terminal geometry.
func (t *TerminalIO) SetSize(width, height int) error {
	return t.term.SetSize(width, height)
}

// StreamIO is plain line I/O for pipes and redirected files. Prompts are not
// printed.
type StreamIO struct {
	in  *bufio.Reader
	mu  sync.Mutex
	out io.Writer
}

// NewStreamIO constructs stream I/O.
func NewStreamIO(r io.Reader, w io.Writer) *StreamIO {
	return &StreamIO{in: bufio.NewReader(r), out: w}
}

// ReadLine returns the next line without its terminator. A final line without
// a newline is returned before io.EOF.
func (s *StreamIO) ReadLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil {
		if line != "" && err == io.EOF {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// SetPrompt is a no-op.
func (s *StreamIO) SetPrompt(string) {}

// WriteLines writes one line per entry.
func (s *StreamIO) WriteLines(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range lines {
		_, _ = fmt.Fprintln(s.out, line)
	}
}
