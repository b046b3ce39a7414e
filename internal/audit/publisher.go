package audit

import (
	"context"
	"log/slog"

	"enrolld/pkg/requestcontext"
)

// Publisher hands audit events to the background worker. Emission is
// fire-and-forget: a full inbox drops the event with a log line, it never
// blocks or fails the calling operation.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewPublisher creates a publisher with a buffered inbox. The returned
// channel feeds a Worker.
func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Inbox exposes the receive side for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// Emit enqueues an event. The error return exists only to satisfy the
// publisher contract shared with stores; it is always nil.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, dropping event",
				"action", event.Action,
			)
		}
	}
	return nil
}
