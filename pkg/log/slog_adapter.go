package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
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
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.StreamID != nil {
		attrs = append(attrs, slog.Int64("stream_id", *event.StreamID))
	}

	// Add type-specific attributes
	switch {
	case event.Handshake != nil:
		attrs = append(attrs, slog.String("protocol", event.Handshake.Protocol))
		if event.Handshake.ServerName != "" {
			attrs = append(attrs, slog.String("server_name", event.Handshake.ServerName))
		}
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Uint64("frame_type", event.Frame.Type),
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Exchange != nil:
		attrs = append(attrs, slog.String("msg_type", event.Exchange.Type.String()))
		if event.Exchange.Method != "" {
			attrs = append(attrs,
				slog.String("method", event.Exchange.Method),
				slog.String("target", event.Exchange.Target),
			)
		}
		if event.Exchange.Status != nil {
			attrs = append(attrs, slog.Int("status", *event.Exchange.Status))
		}
		if event.Exchange.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *event.Exchange.ProcessingTime))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
