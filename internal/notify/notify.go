// Package notify implements the out-of-band notification side channel
// used when a background result cannot be delivered into its
// originating conversation.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

// Notifier delivers a short out-of-band alert to the user.
type Notifier interface {
	Notify(ctx context.Context, title, text string) error
}

// SlackNotifier posts alerts to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
}

// NewSlackNotifier creates a webhook-backed notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{WebhookURL: webhookURL, Channel: channel}
}

func (n *SlackNotifier) Notify(ctx context.Context, title, text string) error {
	msg := &slack.WebhookMessage{
		Channel: n.Channel,
		Text:    fmt.Sprintf("*%s*\n%s", title, text),
	}
	if err := slack.PostWebhookContext(ctx, n.WebhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// LogNotifier is the fallback when no side channel is configured: the
// alert lands in the structured log instead of vanishing.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, title, text string) error {
	slog.Info("notification", "title", title, "text", text)
	return nil
}

// FromConfig picks the configured notifier.
func FromConfig(webhookURL, channel string) Notifier {
	if webhookURL != "" {
		return NewSlackNotifier(webhookURL, channel)
	}
	return LogNotifier{}
}
