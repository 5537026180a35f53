package corofiber

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogifaceLogger_WritesStructuredOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf))

	l.Info("connection accepted", "fd", 7, "remote", "127.0.0.1")

	out := buf.String()
	if !strings.Contains(out, "connection accepted") {
		t.Errorf("output missing message:\n%s", out)
	}
	if !strings.Contains(out, "\"fd\":7") {
		t.Errorf("output missing fd field:\n%s", out)
	}
}

func TestLogifaceLogger_ZeroValueDoesNotPanic(t *testing.T) {
	t.Parallel()

	var l LogifaceLogger
	l.Debug("x")
	l.Info("x", "k", "v")
	l.Warn("x", "odd") // odd-length kv list: trailing key without a value is skipped
	l.Error("x")
}
