package corehttp

import (
	"io"
	"strconv"
	"strings"
)

// chunkedState tracks where a chunkedStream is within a single chunk's
// framing, per spec.md §4.E: ReadSize -> ReadData(n) -> ReadTrailerCRLF ->
// (n=0 ? Done : ReadSize).
type chunkedState int

const (
	chunkedReadSize chunkedState = iota
	chunkedReadData
	chunkedReadTrailer
	chunkedDone
)

// chunkedStream decodes an HTTP/1.1 chunked transfer-coded body read from
// inner, exposing it through the ordinary peek/consume contract. Grounded
// in the teacher's readBodyChunked/parseChunkSize (http.go) and
// requestStream.Read (streaming.go), re-expressed over Stream instead of
// bufio.Reader and without pre-materializing the whole body.
type chunkedStream struct {
	inner     Stream
	state     chunkedState
	bytesLeft int
	scratch   *ByteBuffer
	err       error
}

// newChunkedStream wraps inner as a chunked-decoding Stream. inner is not
// closed by the returned Stream's Close: it is owned by the connection,
// which outlives any single request body.
func newChunkedStream(inner Stream) Stream {
	return &chunkedStream{inner: inner, scratch: NewByteBuffer()}
}

func (s *chunkedStream) Peek() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		switch s.state {
		case chunkedDone:
			return nil, nil
		case chunkedReadSize:
			size, err := parseChunkSizeLine(s.inner, s.scratch)
			if err != nil {
				s.err = err
				return nil, err
			}
			s.bytesLeft = size
			if size == 0 {
				s.state = chunkedReadTrailer
				continue
			}
			s.state = chunkedReadData
		case chunkedReadData:
			if s.bytesLeft == 0 {
				if err := consumeChunkCRLF(s.inner); err != nil {
					s.err = err
					return nil, err
				}
				s.state = chunkedReadSize
				continue
			}
			b, err := s.inner.Peek()
			if err != nil {
				s.err = err
				return nil, err
			}
			if len(b) == 0 {
				s.err = errClientMalformed(io.ErrUnexpectedEOF, "chunked body truncated mid-chunk")
				return nil, s.err
			}
			if len(b) > s.bytesLeft {
				b = b[:s.bytesLeft]
			}
			return b, nil
		case chunkedReadTrailer:
			if err := discardTrailerLines(s.inner, s.scratch); err != nil {
				s.err = err
				return nil, err
			}
			s.state = chunkedDone
			continue
		}
	}
}

func (s *chunkedStream) Consume(n int) error {
	if n == 0 {
		return nil
	}
	if s.state != chunkedReadData {
		return errClientMalformed(nil, "chunked stream consume outside a data window")
	}
	if err := s.inner.Consume(n); err != nil {
		return err
	}
	s.bytesLeft -= n
	return nil
}

// Close does not close the underlying connection stream: ownership of
// that stream belongs to the connection loop across the whole keep-alive
// lifetime, not to a single request's body.
func (s *chunkedStream) Close() error {
	s.state = chunkedDone
	return nil
}

func parseChunkSizeLine(s Stream, scratch *ByteBuffer) (int, error) {
	line, err := ReadLine(s, scratch)
	if err != nil {
		return -1, errClientMalformed(err, "cannot read chunk size line")
	}
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return -1, errClientMalformed(nil, "empty chunk size")
	}
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil || n < 0 {
		return -1, errClientMalformed(err, "malformed chunk size %q", line)
	}
	return int(n), nil
}

func consumeChunkCRLF(s Stream) error {
	for need := 2; need > 0; {
		b, err := s.Peek()
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return errClientMalformed(io.ErrUnexpectedEOF, "missing CRLF after chunk data")
		}
		take := need
		if take > len(b) {
			take = len(b)
		}
		expect := "\r\n"[2-need : 2-need+take]
		if string(b[:take]) != expect {
			return errClientMalformed(nil, "malformed CRLF after chunk data")
		}
		if err := s.Consume(take); err != nil {
			return err
		}
		need -= take
	}
	return nil
}

func discardTrailerLines(s Stream, scratch *ByteBuffer) error {
	for {
		line, err := ReadLine(s, scratch)
		if err != nil {
			return errClientMalformed(err, "cannot read chunk trailer")
		}
		if line == "" {
			return nil
		}
		// Trailer headers are read and fully consumed, per spec.md §4.E;
		// this module does not surface them to the handler.
	}
}

// limitedStream bounds reads from inner to a fixed content length,
// refusing to over-read the socket and failing if inner ends early.
// Grounded in the teacher's appendBodyFixedSize (http.go).
type limitedStream struct {
	inner     Stream
	remaining int
}

func newLimitedStream(inner Stream, contentLength int) Stream {
	return &limitedStream{inner: inner, remaining: contentLength}
}

func (s *limitedStream) Peek() ([]byte, error) {
	if s.remaining == 0 {
		return nil, nil
	}
	b, err := s.inner.Peek()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errClientMalformed(io.ErrUnexpectedEOF, "connection closed before Content-Length bytes were received")
	}
	if len(b) > s.remaining {
		b = b[:s.remaining]
	}
	return b, nil
}

func (s *limitedStream) Consume(n int) error {
	if n == 0 {
		return nil
	}
	if n > s.remaining {
		return errClientMalformed(nil, "consume exceeds remaining content-length")
	}
	if err := s.inner.Consume(n); err != nil {
		return err
	}
	s.remaining -= n
	return nil
}

// Close does not close the underlying connection stream; see
// chunkedStream.Close.
func (s *limitedStream) Close() error {
	s.remaining = 0
	return nil
}

// emptyStream is the zero-length body used when neither Transfer-Encoding
// nor Content-Length is present.
type emptyStream struct{}

func (emptyStream) Peek() ([]byte, error) { return nil, nil }
func (emptyStream) Consume(n int) error {
	if n != 0 {
		return errClientMalformed(nil, "consume on empty body")
	}
	return nil
}
func (emptyStream) Close() error { return nil }
