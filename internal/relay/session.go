package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"infiya.app/relay/common/logger"
)

const supersededReason = "Stream replaced by a newer connection"

// Serve runs one client session: it registers a channel for identity, emits
// connection_established, then forwards frames in order until ctx ends, emit
// fails or a newer session takes over. A heartbeat is emitted after each idle
// interval. The channel is detached on return.
func (r *Registry) Serve(ctx context.Context, identity string, heartbeat time.Duration, emit func(Frame) error) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(identity),
		Component: "relay.session",
	})

	ch := r.Register(identity)
	defer r.Detach(ch)

	slog.InfoContext(ctx, "live session opened")
	defer slog.InfoContext(ctx, "live session closed")

	if err := emit(ConnectionEstablished(identity)); err != nil {
		return err
	}

	for {
		f, err := ch.Next(ctx, heartbeat)
		switch {
		case err == nil:
			if err := emit(f); err != nil {
				return err
			}
		case errors.Is(err, ErrIdle):
			if err := emit(Heartbeat()); err != nil {
				return err
			}
		case errors.Is(err, ErrChannelClosed):
			// Best effort; the old transport may already be gone.
			_ = emit(ConnectionError(supersededReason))
			return nil
		default:
			// Client disconnected or server shutting down.
			return nil
		}
	}
}
