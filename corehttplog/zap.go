// Package corehttplog adapts structured loggers to corehttp.Logger.
package corehttplog

import (
	"go.uber.org/zap"

	"github.com/elwinmorel/corehttp"
)

// zapLogger adapts a *zap.SugaredLogger's Infof to
// corehttp.Logger's Printf contract.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps l as a corehttp.Logger, logging every message at
// info level. l should already be configured with the encoder/output sink
// the deployment wants.
func NewZapLogger(l *zap.Logger) corehttp.Logger {
	return zapLogger{s: l.Sugar()}
}

func (z zapLogger) Printf(format string, args ...any) {
	z.s.Infof(format, args...)
}
