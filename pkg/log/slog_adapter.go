package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see the trace in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("client_id", event.ClientID),
		slog.String("category", event.Category.String()),
	}

	if event.Servers != "" {
		attrs = append(attrs, slog.String("servers", event.Servers))
	}
	if event.SessionID != 0 {
		attrs = append(attrs, slog.String("session", fmt.Sprintf("0x%x", event.SessionID)))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
		if event.StateChange.Resumed {
			attrs = append(attrs, slog.Bool("resumed", true))
		}
		if event.StateChange.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.StateChange.Duration))
		}
	case event.Notification != nil:
		attrs = append(attrs,
			slog.String("type", event.Notification.Type.String()),
			slog.String("state", event.Notification.State.String()),
		)
		if event.Notification.Path != "" {
			attrs = append(attrs, slog.String("path", event.Notification.Path))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_source", event.Error.Source.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", int(*event.Error.Code)))
		}
	case event.Retry != nil:
		attrs = append(attrs, slog.Bool("retry", event.Retry.Retry))
		if event.Retry.Code != nil {
			attrs = append(attrs, slog.Int("code", int(*event.Retry.Code)))
		}
		if event.Retry.Closed {
			attrs = append(attrs, slog.Bool("closed", true))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
