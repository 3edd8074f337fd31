package corehttp

import (
	"io"
	"strings"
	"time"
)

// MaxHeaderCount and MaxHeaderBytes bound a single request's header block,
// per spec.md §4.D's "enforce a maximum header count / total size to
// bound memory".
const (
	MaxHeaderCount = 256
	MaxHeaderBytes = 64 * 1024
)

// RequestUnit is a headers-only request: the body has not been read yet,
// and may never be (e.g. an accept-predicate rejecting the request before
// the body is touched). This is the "unit" body state of spec.md §3/§9.
type RequestUnit struct {
	Method    Method
	Path      string
	Proto     string
	Header    Header
	StartTime time.Time
}

// RequestStream is a request whose body is available as a Stream, not yet
// fully read. Handlers registered against a streaming signature receive
// this shape directly.
type RequestStream struct {
	RequestUnit
	Body Stream
}

// RequestString is a request whose body has been fully read into memory.
// This is what route handlers (4.G) receive.
type RequestString struct {
	RequestUnit
	Body string
}

// KeepAlive reports this request's keep-alive disposition: HTTP/1.1
// defaults to keep-alive unless Connection: close; HTTP/1.0 defaults to
// close unless Connection: keep-alive.
func (r *RequestUnit) KeepAlive() bool {
	if r.Proto == "HTTP/1.1" {
		return !r.Header.ConnectionClose()
	}
	return r.Header.ConnectionKeepAlive()
}

// ParseRequestHead reads a request line and header block from s, per
// spec.md §4.D steps 1-3. It returns io.EOF, unchanged, when s has no
// more bytes at all (a clean end to a keep-alive connection); any other
// failure once a request line has started is a malformed or unsupported
// request.
func ParseRequestHead(s Stream, scratch *ByteBuffer, now time.Time) (RequestUnit, error) {
	peek, err := s.Peek()
	if err != nil {
		return RequestUnit{}, errIO(err, "reading next request")
	}
	if len(peek) == 0 {
		return RequestUnit{}, io.EOF
	}

	line, err := ReadLine(s, scratch)
	if err != nil {
		return RequestUnit{}, errClientMalformed(err, "cannot read request line")
	}

	method, target, proto, err := parseRequestLine(line)
	if err != nil {
		return RequestUnit{}, err
	}

	m, err := ParseMethod(method)
	if err != nil {
		return RequestUnit{}, errUnsupportedMethod(err, "unsupported method %q", method)
	}

	header, err := parseHeaderBlock(s, scratch)
	if err != nil {
		return RequestUnit{}, err
	}

	return RequestUnit{
		Method:    m,
		Path:      target,
		Proto:     proto,
		Header:    header,
		StartTime: now,
	}, nil
}

func parseRequestLine(line string) (method, target, proto string, err error) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 <= 0 {
		return "", "", "", errClientMalformed(nil, "cannot find method in request line %q", line)
	}
	method = line[:sp1]
	rest := line[sp1+1:]
	if rest != "" && rest[0] == ' ' {
		return "", "", "", errClientMalformed(nil, "extra whitespace after method in %q", line)
	}

	sp2 := strings.IndexByte(rest, ' ')
	if sp2 < 0 {
		return "", "", "", errClientMalformed(nil, "cannot find HTTP version in request line %q", line)
	}
	if sp2 == 0 {
		return "", "", "", errClientMalformed(nil, "empty request target in %q", line)
	}
	target = rest[:sp2]
	proto = rest[sp2+1:]

	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return "", "", "", errUnsupportedVersion(nil, "unsupported HTTP version %q", proto)
	}
	return method, target, proto, nil
}

func parseHeaderBlock(s Stream, scratch *ByteBuffer) (Header, error) {
	var h Header
	total := 0
	for {
		line, err := ReadLine(s, scratch)
		if err != nil {
			return Header{}, errClientMalformed(err, "cannot read header line")
		}
		if line == "" {
			return h, nil
		}

		total += len(line)
		if total > MaxHeaderBytes || h.Len()+1 > MaxHeaderCount {
			return Header{}, newError(KindClientMalformed, StatusRequestHeaderFields, nil, "request headers exceed configured limit")
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return Header{}, errClientMalformed(nil, "malformed header line %q (obsolete line folding is not supported)", line)
		}
		name := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")

		if err := ValidateHeaderName(name); err != nil {
			return Header{}, errClientMalformed(err, "invalid header name in %q", line)
		}
		h.Add(name, value)
	}
}

// AttachBody wraps conn (the remaining connection stream) into a request
// body Stream by inspecting unit's headers, per spec.md §4.D "Body
// attachment": chunked if Transfer-Encoding: chunked is present, else
// length-limited if Content-Length is present, else empty.
// Transfer-Encoding: identity is treated as absent, per spec.md §4.I.
func AttachBody(unit RequestUnit, conn Stream) (RequestStream, error) {
	if te, ok := unit.Header.Get("Transfer-Encoding"); ok {
		te = strings.TrimSpace(te)
		if !strings.EqualFold(te, "identity") {
			if !strings.EqualFold(te, "chunked") {
				return RequestStream{}, newError(KindUnsupported, StatusNotImplemented, nil, "unsupported transfer-encoding %q", te)
			}
			return RequestStream{RequestUnit: unit, Body: newChunkedStream(conn)}, nil
		}
	}
	if n, ok := unit.Header.Int("Content-Length"); ok {
		if n < 0 {
			return RequestStream{}, errClientMalformed(nil, "negative content-length")
		}
		return RequestStream{RequestUnit: unit, Body: newLimitedStream(conn, n)}, nil
	}
	return RequestStream{RequestUnit: unit, Body: emptyStream{}}, nil
}

// ReadBodyFull materializes rs's body into memory, producing a
// RequestString. This is the stream->string conversion of spec.md §9; it
// is total except for the I/O error a failing read can produce.
func ReadBodyFull(rs RequestStream) (RequestString, error) {
	body, err := ReadAll(rs.Body)
	if err != nil {
		return RequestString{}, errIO(err, "reading request body")
	}
	return RequestString{RequestUnit: rs.RequestUnit, Body: body}, nil
}

// DrainBody discards any unread bytes of rs's body, without
// materializing them, so the connection can be reused for the next
// keep-alive request. spec.md §3's invariant requires this (or a close)
// before the next request is parsed.
func DrainBody(body Stream) error {
	for {
		b, err := body.Peek()
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return nil
		}
		if err := body.Consume(len(b)); err != nil {
			return err
		}
	}
}
