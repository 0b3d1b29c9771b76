package testutil

import (
	"log"
	"testing"
)

// testWriter routes log output through t.Logf so it is attached to the
// test that produced it and suppressed for passing tests.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// TestLogger returns a logger that writes through the test's own log,
// prefixed with the test name.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t: t}, "["+t.Name()+"] ", log.LstdFlags)
}
