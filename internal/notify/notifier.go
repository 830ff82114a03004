// Package notify fans operator notifications out to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Event names emitted by the execution pipeline.
const (
	EventTradeFilled = "trade_filled"
	EventError       = "error"
	EventDailyReset  = "daily_reset"
)

// Sender delivers one notification to one channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	Name() string
}

// Notification is a single rendered alert.
type Notification struct {
	Event   string
	Title   string
	Message string
}

// Notifier sends allowed events to every sender concurrently.
type Notifier struct {
	senders []Sender
	events  map[string]struct{} // nil allows everything
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
	for _, e := range events {
		if e = strings.TrimSpace(e); e == "" {
			continue
		}
		if n.events == nil {
			n.events = make(map[string]struct{})
		}
		n.events[e] = struct{}{}
	}
	return n
}

// Enabled reports whether at least one sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify delivers the event to every sender. Filtered events are dropped
// silently. One failing sender does not stop the others; their errors are
// joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if n.events != nil {
		if _, ok := n.events[event]; !ok {
			return nil
		}
	}

	msg := Notification{Event: event, Title: title, Message: message}
	errs := make([]error, len(n.senders))

	var g errgroup.Group
	for i, s := range n.senders {
		g.Go(func() error {
			if err := s.Send(ctx, msg); err != nil {
				n.logger.WarnContext(ctx, "notify: send failed",
					slog.String("sender", s.Name()),
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
