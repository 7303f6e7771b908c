package shellexec

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"pkt.systems/idemy/core"
	"pkt.systems/idemy/schema"
	"pkt.systems/pslog"
)

const maxLineBytes = 1024 * 1024

// lineStream merges stdout and stderr lines. Each stream is read by its own
// goroutine so order within a stream is kept; the channel closes only after
// both readers reached end of input.
type lineStream struct {
	lines     chan core.CommandOutput
	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
	wg        sync.WaitGroup
	log       pslog.Logger
}

func newLineStream(ctx context.Context, stdout io.Reader, stderr io.Reader) *lineStream {
	stream := &lineStream{
		lines: make(chan core.CommandOutput, 256),
		done:  make(chan struct{}),
		log:   pslog.Ctx(ctx),
	}
	stream.wg.Add(2)
	go stream.read(stdout, schema.StreamStdout)
	go stream.read(stderr, schema.StreamStderr)
	go func() {
		stream.wg.Wait()
		close(stream.lines)
	}()
	return stream
}

func (s *lineStream) read(reader io.Reader, kind schema.StreamKind) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineBytes)
	count := 0
	for scanner.Scan() {
		text := strings.TrimSuffix(scanner.Text(), "\r")
		count++
		select {
		case s.lines <- core.CommandOutput{Stream: kind, Text: text}:
		case <-s.done:
			_, _ = io.Copy(io.Discard, reader)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("shell output read failed", "stream", kind, "err", err)
		s.setErr(err)
		// Keep the pipe flowing so the process can exit.
		_, _ = io.Copy(io.Discard, reader)
	}
	s.log.Trace("shell output completed", "stream", kind, "lines", count)
}

func (s *lineStream) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *lineStream) Next(ctx context.Context) (core.CommandOutput, error) {
	select {
	case <-ctx.Done():
		return core.CommandOutput{}, ctx.Err()
	case line, ok := <-s.lines:
		if ok {
			return line, nil
		}
		s.errMu.Lock()
		err := s.err
		s.errMu.Unlock()
		if err != nil {
			return core.CommandOutput{}, err
		}
		return core.CommandOutput{}, io.EOF
	}
}

func (s *lineStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}
