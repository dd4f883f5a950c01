// Package notify delivers operator alerts over one or more channels
// (Telegram, Discord). Alerts carry an event type so deployments can
// subscribe to a subset, e.g. only execution failures and detected
// opportunities.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is a single delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs, e.g. "telegram".
	Name() string
}

// Notifier fans an alert out to every configured sender. A non-empty
// subscription set restricts Notify to the listed event types; NotifyAll
// ignores the subscription set.
type Notifier struct {
	senders    []Sender
	subscribed map[string]struct{}
	logger     *slog.Logger
}

// NewNotifier builds a Notifier delivering to senders. An empty events
// slice subscribes to everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	subs := make(map[string]struct{}, len(events))
	for _, e := range events {
		subs[strings.TrimSpace(e)] = struct{}{}
	}
	return &Notifier{
		senders:    senders,
		subscribed: subs,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert if the event type is subscribed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.subscribed) > 0 {
		if _, ok := n.subscribed[event]; !ok {
			n.logger.DebugContext(ctx, "event not subscribed", slog.String("event", event))
			return nil
		}
	}
	return n.fanOut(ctx, title, message)
}

// NotifyAll delivers the alert regardless of event subscriptions.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.fanOut(ctx, title, message)
}

// fanOut sends to every channel. One failing sender does not stop the
// others; failures are joined into the returned error.
func (n *Notifier) fanOut(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
