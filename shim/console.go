package shim

import (
	"bytes"
	"io"

	"go.uber.org/zap"
)

// ConsoleBufferSize is the number of bytes each console stream retains.
const ConsoleBufferSize = 64 * 1024

// Stream is a bounded output buffer. When full, the oldest bytes are
// dropped. Complete lines are mirrored to the shim logger and, when set,
// copied to a sink writer.
type Stream struct {
	name    string
	buf     []byte
	limit   int
	dropped uint64
	line    []byte
	sink    io.Writer
}

// NewStream returns a stream named name that retains limit bytes.
func NewStream(name string, limit int, sink io.Writer) *Stream {
	if limit <= 0 {
		limit = ConsoleBufferSize
	}
	return &Stream{name: name, limit: limit, sink: sink}
}

// Write appends p. It never fails.
func (s *Stream) Write(p []byte) (int, error) {
	if s.sink != nil {
		// Sink failures do not affect the buffered copy.
		_, _ = s.sink.Write(p)
	}

	s.buf = append(s.buf, p...)
	if over := len(s.buf) - s.limit; over > 0 {
		s.dropped += uint64(over)
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}

	s.line = append(s.line, p...)
	for {
		i := bytes.IndexByte(s.line, '\n')
		if i < 0 {
			break
		}
		s.emit(s.line[:i])
		s.line = s.line[i+1:]
	}
	if len(s.line) > s.limit {
		s.emit(s.line)
		s.line = nil
	}
	return len(p), nil
}

// WriteString appends str.
func (s *Stream) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

func (s *Stream) emit(line []byte) {
	Logger().Info("guest output", zap.String("stream", s.name), zap.ByteString("line", line))
}

// Flush mirrors a pending partial line.
func (s *Stream) Flush() {
	if len(s.line) > 0 {
		s.emit(s.line)
		s.line = nil
	}
}

// Bytes returns a copy of the retained output.
func (s *Stream) Bytes() []byte {
	return bytes.Clone(s.buf)
}

func (s *Stream) String() string {
	return string(s.buf)
}

// Dropped returns how many bytes were discarded to stay within the limit.
func (s *Stream) Dropped() uint64 {
	return s.dropped
}

// Reset discards retained output and any pending line.
func (s *Stream) Reset() {
	s.buf = s.buf[:0]
	s.line = nil
	s.dropped = 0
}

// Console groups the guest's standard streams.
type Console struct {
	Stdin  io.Reader
	Stdout *Stream
	Stderr *Stream
}

// NewConsole returns a console whose output streams copy to stdout and
// stderr when they are non-nil. Stdin is always at end of file.
func NewConsole(stdout, stderr io.Writer) *Console {
	return &Console{
		Stdin:  eofReader{},
		Stdout: NewStream("stdout", ConsoleBufferSize, stdout),
		Stderr: NewStream("stderr", ConsoleBufferSize, stderr),
	}
}

// Flush mirrors pending partial lines of both output streams.
func (c *Console) Flush() {
	c.Stdout.Flush()
	c.Stderr.Flush()
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
