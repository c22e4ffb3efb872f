package queue

import (
	"context"
	"log/slog"
	"time"
)

// Sink accepts notification events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Async hands events to the wrapped sink on a separate goroutine so the
// caller never waits on the broker. Failures are logged and dropped.
type Async struct {
	next    Sink
	timeout time.Duration
	logger  *slog.Logger
	onError func(Event, error)
}

// NewAsync wraps next. timeout bounds each delivery attempt.
func NewAsync(next Sink, timeout time.Duration, logger *slog.Logger, onError func(Event, error)) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: logger, onError: onError}
}

// Publish always returns nil; delivery happens in the background.
func (a *Async) Publish(_ context.Context, ev Event) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Publish(ctx, ev); err != nil {
			a.logger.Warn("notification dropped",
				slog.String("event_id", ev.ID),
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
			if a.onError != nil {
				a.onError(ev, err)
			}
		}
	}()
	return nil
}

// Discard is a sink that drops every event, used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
