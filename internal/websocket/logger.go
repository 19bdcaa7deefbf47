package websocket

import (
	"go.uber.org/zap"
)

// Logger provides structured logging for subscriber connection events.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a logger tagged with component=websocket. A nil base
// falls back to the global zap logger.
func NewLogger(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.L()
	}
	return &Logger{
		logger: base.With(zap.String("component", "websocket")),
	}
}

func (l *Logger) Info(event string, connID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("connection_id", connID),
	}, fields...)
	l.logger.Info("websocket_event", allFields...)
}

func (l *Logger) Warn(event string, connID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("connection_id", connID),
	}, fields...)
	l.logger.Warn("websocket_warning", allFields...)
}

func (l *Logger) Error(event string, connID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("connection_id", connID),
		zap.Error(err),
	}, fields...)
	l.logger.Error("websocket_error", allFields...)
}
