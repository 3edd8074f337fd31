package corehttp

import (
	"fmt"
	"strings"
)

// Kind classifies why a connection-level operation failed, driving how
// the connection loop (conn.go) responds and whether it keeps the
// connection alive, per spec.md §7.
type Kind int

const (
	// KindClientMalformed covers a bad request line, bad headers, or a
	// malformed chunk size. The loop responds with the carried code (400,
	// or 431 for an oversized header block) and closes.
	KindClientMalformed Kind = iota
	// KindUnsupported covers an unknown method or unsupported HTTP
	// version/transfer-encoding. The loop responds 501 or 505 and closes.
	KindUnsupported
	// KindAcceptRejected means a route's accept-predicate returned an
	// error before the body was read. The loop responds with the
	// carried code/message and closes.
	KindAcceptRejected
	// KindHandlerAbort means a handler deliberately failed with a status
	// code and message. The loop responds with that code/message and
	// honors keep-alive.
	KindHandlerAbort
	// KindIO means a read or write failed mid-connection. The loop logs
	// and closes silently.
	KindIO
	// KindInternal means an unexpected failure occurred inside a
	// handler or middleware. The loop responds 500 if nothing has been
	// written yet, otherwise it closes.
	KindInternal
)

// Error is the single error type the connection loop inspects to decide
// how to respond. It carries the wire-visible (Code, Message) pair
// alongside the classification that decides keep-alive disposition.
//
// This is the formatted-failure mechanism spec.md §9 asks for in place of
// the teacher's use of a control-flow exception for handler aborts: a
// returned value the loop switches on, rather than something unwound
// through a panic/recover.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("corehttp: %s (%d): %v", e.Message, e.Code, e.cause)
	}
	return fmt.Sprintf("corehttp: %s (%d)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, code int, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

func errClientMalformed(cause error, format string, args ...any) *Error {
	return newError(KindClientMalformed, StatusBadRequest, cause, format, args...)
}

func errUnsupportedMethod(cause error, format string, args ...any) *Error {
	return newError(KindUnsupported, StatusNotImplemented, cause, format, args...)
}

func errUnsupportedVersion(cause error, format string, args ...any) *Error {
	return newError(KindUnsupported, StatusHTTPVersionNotSup, cause, format, args...)
}

// NewAcceptRejection builds the failure an AcceptPredicate returns to
// reject a request before its body is read, per spec.md §4.G/§8.
func NewAcceptRejection(code int, format string, args ...any) *Error {
	return newError(KindAcceptRejected, code, nil, format, args...)
}

// NewHandlerFailure builds the formatted-message failure a handler
// returns to abort with a specific status code, per spec.md §4.F/§9.
func NewHandlerFailure(code int, format string, args ...any) *Error {
	return newError(KindHandlerAbort, code, nil, format, args...)
}

func errIO(cause error, format string, args ...any) *Error {
	return newError(KindIO, 0, cause, format, args...)
}

func errInternal(cause error, format string, args ...any) *Error {
	return newError(KindInternal, StatusInternalServerError, cause, format, args...)
}

// asError coerces err into *Error, classifying it as fallbackKind with a
// 500 status if it isn't already one — the case of a plain error escaping
// from a handler or middleware callback instead of a deliberate failure
// value.
func asError(err error, fallbackKind Kind) *Error {
	if herr, ok := err.(*Error); ok {
		return herr
	}
	return newError(fallbackKind, StatusInternalServerError, err, "unclassified error")
}

// isBenignIOError reports whether err is a routine connection teardown
// (broken pipe, reset, closed connection, timeout) rather than something
// worth logging at normal verbosity. Grounded in workerPool.workerFunc's
// own error-substring filtering in the teacher's workerpool.go.
func isBenignIOError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, substr := range []string{
		"broken pipe",
		"reset by peer",
		"use of closed network connection",
		"i/o timeout",
		"unexpected EOF",
	} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
