package testutils

import (
	"bytes"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestHelper bundles a test with a logger whose output is captured
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestHelper creates a helper with a debug-level logger writing to an
// in-memory buffer.
func NewTestHelper(t *testing.T) *TestHelper {
	h := &TestHelper{T: t}
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(h)
	logger.SetFormatter(&logrus.JSONFormatter{})
	h.Logger = logger
	return h
}

// Write implements io.Writer for the captured logger
func (h *TestHelper) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Write(p)
}

// Logs returns everything logged so far
func (h *TestHelper) Logs() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
