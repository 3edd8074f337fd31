package corehttp

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"
)

// serveConn runs the keep-alive loop for one accepted connection, per
// spec.md §4.I: parse request head, run decode callbacks, attach and
// transform the body, dispatch through the router, run encode callbacks,
// write the response, and decide whether to read another request from the
// same socket. Grounded in the teacher's Server.serveConn (server.go),
// restructured around Stream/RequestUnit/Response instead of the teacher's
// pooled RequestCtx.
func (s *Server) serveConn(conn net.Conn, reqID string) {
	defer conn.Close()

	in := NewConnStream(conn, s.bufSize)
	out := bufio.NewWriter(conn)
	scratch := NewByteBuffer()
	connStart := s.now()

	for {
		if s.readTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
				return
			}
		}

		unit, err := ParseRequestHead(in, scratch, s.now())
		if err != nil {
			if err == io.EOF {
				return
			}
			herr := asError(err, KindClientMalformed)
			s.logConnError(reqID, herr)
			if herr.Kind == KindIO {
				// Most commonly the read-timeout firing on an idle
				// keep-alive connection (spec.md §5(i)): close silently,
				// per spec.md §7's IOError disposition, rather than
				// writing an unsolicited response to a peer that never
				// sent another request.
				return
			}
			resp := ResponseFromError(herr)
			s.writeFinal(conn, out, &resp, reqID)
			return
		}

		resp, connClose, isHead, skipWrite := s.handleRequest(unit, in, reqID)
		if skipWrite {
			return
		}

		if s.writeTimeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		}
		if err := WriteResponse(out, &resp, connClose, isHead); err != nil {
			s.logConnError(reqID, asError(err, KindIO))
			return
		}
		if err := out.Flush(); err != nil {
			s.logConnError(reqID, asError(err, KindIO))
			return
		}

		if connClose {
			return
		}
		if s.maxKeepAliveSeconds >= 0 {
			if s.now().Sub(connStart) > time.Duration(s.maxKeepAliveSeconds)*time.Second {
				return
			}
		}
	}
}

// writeFinal writes a last response (used for the malformed-request-line
// path, where no keep-alive decision is possible) best-effort; write
// failures here are logged, not retried, since the connection is about to
// be closed regardless.
func (s *Server) writeFinal(conn net.Conn, out *bufio.Writer, resp *Response, reqID string) {
	if s.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteResponse(out, resp, true, false); err != nil {
		s.logConnError(reqID, asError(err, KindIO))
		return
	}
	if err := out.Flush(); err != nil {
		s.logConnError(reqID, asError(err, KindIO))
	}
}

// handleRequest runs the decode callbacks, body attachment, router
// dispatch, and encode callbacks for one request, and decides the
// resulting keep-alive disposition. skipWrite reports that the connection
// is unusable and the caller must not attempt to write a response at all
// (a body read failed with an I/O error: the socket is assumed broken). isHead
// reports whether the (possibly middleware-replaced) request method is
// HEAD, so the caller suppresses the response body.
func (s *Server) handleRequest(unit RequestUnit, in Stream, reqID string) (resp Response, connClose bool, isHead bool, skipWrite bool) {
	newUnit, transform, derr := s.chain.RunDecode(unit)
	if derr != nil {
		herr := asError(derr, KindInternal)
		s.logConnError(reqID, herr)
		return ResponseFromError(herr), true, unit.Method == MethodHead, false
	}
	isHead = newUnit.Method == MethodHead

	raw, aerr := AttachBody(newUnit, in)
	if aerr != nil {
		herr := asError(aerr, KindClientMalformed)
		s.logConnError(reqID, herr)
		return ResponseFromError(herr), true, isHead, false
	}
	raw.Body = transform(raw.Body)

	bodyMaterialized := false
	reqStr := RequestString{RequestUnit: newUnit}
	readBody := func() (RequestString, error) {
		bodyMaterialized = true
		rs, err := ReadBodyFull(raw)
		if err == nil {
			reqStr = rs
		}
		return rs, err
	}

	dispatched, derr2 := s.router.Dispatch(newUnit, readBody)

	if derr2 != nil {
		herr := asError(derr2, KindInternal)
		s.logConnError(reqID, herr)
		if herr.Kind == KindIO {
			// A malformed body (bad chunk framing, short Content-Length
			// body) still gets its 400; any other read failure leaves
			// the socket unusable.
			var cause *Error
			if errors.As(herr.cause, &cause) && cause.Kind == KindClientMalformed {
				return ResponseFromError(cause), true, isHead, false
			}
			return Response{}, true, isHead, true
		}

		// Only a handler-abort (KindHandlerAbort) honors keep-alive;
		// KindAcceptRejected and KindInternal always close. Drain the
		// unread body only when the connection will actually be reused,
		// so an accept-predicate rejection — whose purpose (spec.md
		// §4.G/§8) is to reject an oversized or unauthorized body before
		// it is read — never pulls that body off the socket anyway.
		connClose = true
		if herr.Kind == KindHandlerAbort {
			connClose = !newUnit.KeepAlive()
		}
		if !connClose && !bodyMaterialized {
			_ = DrainBody(raw.Body)
		}

		encoded, eerr := s.chain.RunEncode(reqStr, dispatched)
		if eerr != nil {
			s.logConnError(reqID, asError(eerr, KindInternal))
			return dispatched, true, isHead, false
		}
		if !connClose && encoded.Header.ConnectionClose() {
			connClose = true
		}
		return encoded, connClose, isHead, false
	}

	if !bodyMaterialized {
		if derr3 := DrainBody(raw.Body); derr3 != nil {
			s.logConnError(reqID, asError(derr3, KindIO))
			connClose = true
		}
	}

	encoded, eerr := s.chain.RunEncode(reqStr, dispatched)
	if eerr != nil {
		herr := asError(eerr, KindInternal)
		s.logConnError(reqID, herr)
		return ResponseFromError(herr), true, isHead, false
	}

	if !newUnit.KeepAlive() || encoded.Header.ConnectionClose() {
		connClose = true
	}
	return encoded, connClose, isHead, false
}

// logConnError logs herr unless it is a routine connection teardown,
// mirroring the teacher's own filtering of broken-pipe-class errors out of
// its worker pool logging.
func (s *Server) logConnError(reqID string, herr *Error) {
	if herr.Kind == KindIO && isBenignIOError(herr.cause) {
		return
	}
	s.logger.Printf("[%s] %v", reqID, herr)
}
