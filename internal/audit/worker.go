package audit

import (
	"context"
	"log/slog"
)

// Sink receives audit events for durable delivery.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Worker consumes audit events from the publisher inbox and forwards them to
// the configured sinks. Sink failures are logged and swallowed: audit delivery
// problems must never surface to the operations that emitted the events.
type Worker struct {
	sinks  []Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{sinks: sinks, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Append(ctx, event); err != nil && w.logger != nil {
					w.logger.WarnContext(ctx, "audit sink append failed",
						"action", event.Action,
						"error", err,
					)
				}
			}
		}
	}
}
