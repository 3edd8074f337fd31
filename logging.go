package corehttp

import "log"

// Logger is the minimal logging capability the connection loop and server
// lifecycle use for recoverable errors: accept failures, I/O errors,
// malformed requests. One method, matching the teacher's own Logger
// interface, so the standard library's *log.Logger or a test spy
// satisfies it without an adapter; a *zap.Logger goes through
// corehttplog.NewZapLogger.
type Logger interface {
	Printf(format string, args ...any)
}

// stdLogger adapts the standard library's log.Logger to Logger. It is the
// default when no Logger option is supplied.
type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Printf(format string, args ...any) {
	s.l.Printf(format, args...)
}

// NewStdLogger wraps l as a Logger.
func NewStdLogger(l *log.Logger) Logger {
	return stdLogger{l: l}
}

func defaultLogger() Logger {
	return stdLogger{l: log.Default()}
}
