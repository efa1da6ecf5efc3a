package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Options{Service: "kitchen-ops", Env: "test", Level: "loud"})
	assert.Error(t, err)
}

func TestNewLoggerDuplicatesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kitchen.log")
	logger, err := NewLogger(Options{Service: "kitchen-ops", Env: "test", Level: "debug", File: path})
	require.NoError(t, err)

	WithTrace(logger, "", SystemSpanID).Info("order_loaded")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"order_loaded"`)
	assert.Contains(t, string(raw), `"service":"kitchen-ops"`)
	assert.Contains(t, string(raw), `"trace_id":"unknown"`)
}
