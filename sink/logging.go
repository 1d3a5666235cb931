package sink

import (
	"context"
	"log/slog"
)

// LoggingClient dispatches one structured log record per message to a
// user-configured slog.Handler (spec.md §6), matching the daemon's own
// ambient logging stack rather than opening a second logging pathway.
type LoggingClient struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLoggingClient wraps handler at the given level.
func NewLoggingClient(handler slog.Handler, level slog.Level) *LoggingClient {
	return &LoggingClient{logger: slog.New(handler), level: level}
}

// Log emits one record with msg as the message text and fields as
// structured attributes.
func (c *LoggingClient) Log(ctx context.Context, msg string, fields map[string]any) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	c.logger.Log(ctx, c.level, msg, args...)
}
