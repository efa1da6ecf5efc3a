package monitoring

import (
	"context"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Alert is a message for the monitoring alert API.
type Alert struct {
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Target is the write-queue target name under which alerts are delivered.
const Target = "monitoring_alert"

type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}
