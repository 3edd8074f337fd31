package corehttp

import (
	"bufio"
	"fmt"
	"strconv"
)

// ResponseBody is the tagged union of spec.md §3: either a finite string
// or a buffered Stream emitted with chunked encoding.
type ResponseBody struct {
	str      string
	isString bool
	stream   Stream
}

// StringBody returns a finite, fixed-length response body.
func StringBody(s string) ResponseBody {
	return ResponseBody{str: s, isString: true}
}

// StreamBody returns a streaming response body, emitted with chunked
// transfer-encoding.
func StreamBody(s Stream) ResponseBody {
	return ResponseBody{stream: s}
}

// IsStream reports whether the body is a Stream rather than a string.
func (b ResponseBody) IsStream() bool { return !b.isString && b.stream != nil }

// AsStream exposes the body uniformly as a Stream, wrapping a string body
// in a one-shot slice stream. Middleware that needs to transform a
// response body regardless of its current representation (e.g. the
// compression middleware) uses this rather than branching on IsStream.
func (b ResponseBody) AsStream() Stream {
	if b.IsStream() {
		return b.stream
	}
	return NewSliceStream([]byte(b.str))
}

// Response is a status code, headers, and body. Default headers
// (Content-Length or Transfer-Encoding, and Connection) are supplied by
// the writer, not by callers constructing a Response.
type Response struct {
	Code   int
	Header Header
	Body   ResponseBody
}

// NewResponse builds a Response with the given status code and body.
func NewResponse(code int, body ResponseBody) Response {
	return Response{Code: code, Body: body}
}

// ResponseFromError maps a handler-abort or rejection *Error into the
// response the connection loop writes to the peer: its carried code and
// message become the response's status and string body, per spec.md
// §4.F/§7.
func ResponseFromError(err *Error) Response {
	code := err.Code
	if code == 0 {
		code = StatusInternalServerError
	}
	return NewResponse(code, StringBody(err.Message))
}

// WriteResponse serializes resp to w, framing the body per spec.md §4.F,
// and sets the Connection header to reflect connectionClose: the final,
// already-decided keep-alive disposition for this exchange. Grounded in
// the teacher's writeBodyChunked/writeChunk/writeBodyFixedSize (http.go).
//
// isHead suppresses the body bytes (but not the framing headers) for a
// HEAD request, per RFC 7231 §4.3.2: the status line and headers are
// written exactly as for the equivalent GET, just without the entity.
func WriteResponse(w *bufio.Writer, resp *Response, connectionClose bool, isHead bool) error {
	if resp.Body.IsStream() {
		resp.Header.Remove("Content-Length")
		resp.Header.Set("Transfer-Encoding", "chunked")
	} else {
		resp.Header.Remove("Transfer-Encoding")
		resp.Header.Set("Content-Length", strconv.Itoa(len(resp.Body.str)))
	}
	if connectionClose {
		resp.Header.Set("Connection", "close")
	} else {
		resp.Header.Set("Connection", "keep-alive")
	}

	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", resp.Code, StatusMessage(resp.Code)); err != nil {
		return err
	}
	var writeErr error
	resp.Header.VisitAll(func(name, value string) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(w, "%s: %s\r\n", name, value)
	})
	if writeErr != nil {
		return writeErr
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}

	if isHead {
		if resp.Body.IsStream() {
			return resp.Body.stream.Close()
		}
		return nil
	}

	if resp.Body.IsStream() {
		return writeChunkedBody(w, resp.Body.stream)
	}
	_, err := w.WriteString(resp.Body.str)
	return err
}

func writeChunkedBody(w *bufio.Writer, body Stream) error {
	for {
		b, err := body.Peek()
		if err != nil {
			return err
		}
		if len(b) == 0 {
			_, err := w.WriteString("0\r\n\r\n")
			return err
		}
		if _, err := fmt.Fprintf(w, "%x\r\n", len(b)); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
		if err := body.Consume(len(b)); err != nil {
			return err
		}
	}
}
