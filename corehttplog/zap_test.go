package corehttplog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/elwinmorel/corehttp"
)

func TestNewZapLoggerSatisfiesLoggerInterface(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewZapLogger(zap.New(core))

	var _ corehttp.Logger = l
	l.Printf("connection %s closed: %v", "abc123", "EOF")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Message != `connection abc123 closed: EOF` {
		t.Fatalf("message = %q", entries[0].Message)
	}
}
