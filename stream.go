package corehttp

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// DefaultBufferSize is the default I/O buffer size used by stream sources
// that read from an underlying io.Reader, matching the server's buf_size
// default of 16 KiB.
const DefaultBufferSize = 16 * 1024

// MaxLineSize bounds a single ReadLine call, guarding against a peer that
// never sends a CRLF. 8 KiB is the floor spec.md requires; this module
// does not grow it per-connection.
const MaxLineSize = 8 * 1024

// ErrLineTooLong is returned by ReadLine when no CRLF is found within
// MaxLineSize bytes.
var ErrLineTooLong = errors.New("corehttp: line exceeds maximum length")

// Stream is the zero-copy peek/consume capability that unifies socket
// input, file input, in-memory input, and the transfer-decoding pipeline
// behind a single interface.
//
// Peek returns the currently buffered, unconsumed slice. It may block to
// refill. A zero-length slice with a nil error means end-of-stream; once
// observed, subsequent Peek calls keep returning zero-length slices.
//
// Consume advances past n bytes of the slice most recently returned by
// Peek; n must not exceed that slice's length. Consume(0) always succeeds.
//
// Close releases any underlying resource. Closing twice is a no-op.
type Stream interface {
	Peek() ([]byte, error)
	Consume(n int) error
	Close() error
}

// readerStream wraps an io.ReadCloser with an owned, fixed-size byte
// buffer, refilled once its contents are fully consumed, exposing it
// through the peek/consume contract. Grounded in
// the teacher's bufio.Reader usage in server.go/http.go, re-expressed as
// an explicit capability rather than bufio's Read/Peek/Discard split.
type readerStream struct {
	src    io.ReadCloser
	buf    []byte
	start  int
	end    int
	eof    bool
	closed bool
}

// NewConnStream wraps src (typically a net.Conn) in a Stream that reads in
// bufSize chunks. If bufSize <= 0, DefaultBufferSize is used.
func NewConnStream(src io.ReadCloser, bufSize int) Stream {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &readerStream{
		src: src,
		buf: make([]byte, bufSize),
	}
}

func (s *readerStream) Peek() ([]byte, error) {
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	if s.start < s.end {
		return s.buf[s.start:s.end], nil
	}
	if s.eof {
		return s.buf[:0], nil
	}

	s.start = 0
	s.end = 0
	for {
		n, err := s.src.Read(s.buf)
		if n > 0 {
			s.end = n
			return s.buf[:n], nil
		}
		if err != nil {
			if err == io.EOF {
				s.eof = true
				return s.buf[:0], nil
			}
			return nil, err
		}
		// n == 0, err == nil: blocking reader returned nothing; retry.
	}
}

func (s *readerStream) Consume(n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || s.start+n > s.end {
		return errors.New("corehttp: consume exceeds last peeked length")
	}
	s.start += n
	return nil
}

func (s *readerStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.src.Close()
}

// sliceStream is a single-shot Stream over an in-memory byte slice.
type sliceStream struct {
	b   []byte
	pos int
}

// NewSliceStream returns a Stream that serves b and nothing else. Close is
// a no-op: there is no underlying resource to release.
func NewSliceStream(b []byte) Stream {
	return &sliceStream{b: b}
}

func (s *sliceStream) Peek() ([]byte, error) {
	return s.b[s.pos:], nil
}

func (s *sliceStream) Consume(n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || s.pos+n > len(s.b) {
		return errors.New("corehttp: consume exceeds last peeked length")
	}
	s.pos += n
	return nil
}

func (*sliceStream) Close() error {
	return nil
}

// WithFileStream opens path, invokes fn with a Stream over its contents,
// and guarantees the file is closed on every exit path from fn, including
// a panic unwinding through it.
func WithFileStream(path string, bufSize int, fn func(Stream) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	s := NewConnStream(f, bufSize)
	defer s.Close()
	return fn(s)
}

// ReadLine reads from s until CRLF (or a bare LF) and returns the line
// with the line terminator stripped. scratch is reused across calls as
// working storage; the returned string is a copy and remains valid after
// scratch is reused. ReadLine fails with io.ErrUnexpectedEOF if the stream
// ends before a terminator is found, and with ErrLineTooLong if the line
// exceeds MaxLineSize bytes.
func ReadLine(s Stream, scratch *ByteBuffer) (string, error) {
	scratch.Reset()
	for {
		b, err := s.Peek()
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "", io.ErrUnexpectedEOF
		}
		if idx := bytes.IndexByte(b, '\n'); idx >= 0 {
			scratch.Write(b[:idx+1])
			if err := s.Consume(idx + 1); err != nil {
				return "", err
			}
			if scratch.Len() > MaxLineSize {
				return "", ErrLineTooLong
			}
			line := bytes.TrimSuffix(scratch.B, []byte("\n"))
			line = bytes.TrimSuffix(line, []byte("\r"))
			return string(line), nil
		}
		scratch.Write(b)
		if err := s.Consume(len(b)); err != nil {
			return "", err
		}
		if scratch.Len() > MaxLineSize {
			return "", ErrLineTooLong
		}
	}
}

// ReadAll concatenates everything remaining in s until end-of-stream.
func ReadAll(s Stream) (string, error) {
	buf := AcquireByteBuffer()
	defer ReleaseByteBuffer(buf)
	for {
		b, err := s.Peek()
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return buf.String(), nil
		}
		buf.Write(b)
		if err := s.Consume(len(b)); err != nil {
			return "", err
		}
	}
}
