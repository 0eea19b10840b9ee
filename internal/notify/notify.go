// Package notify delivers expiry notifications to an external messaging
// sink. Delivery is best-effort: a failed notification never blocks or
// reverts the state change that triggered it.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notifier sends one message to the configured sink.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// maxAttempts bounds delivery retries per message.
const maxAttempts = 3

// SendAll delivers every message with bounded retries. Failures are
// logged and swallowed.
func SendAll(ctx context.Context, n Notifier, messages []string) {
	for _, message := range messages {
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			lastErr = n.Send(ctx, message)
			if lastErr == nil {
				break
			}
			slog.Warn("notification attempt failed",
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				slog.Error("notification dropped", "error", ctx.Err())
				return
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		if lastErr != nil {
			slog.Error("notification dropped after retries", "error", lastErr)
		}
	}
}

// Nop discards every message. Used when no sink is configured.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }
