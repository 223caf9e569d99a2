package core

import "context"

// Notifier delivers a text message to a chat. Delivery is best-effort:
// callers log failures and never retry, and a failed send must never roll
// back state that was already committed.
type Notifier interface {
	Send(ctx context.Context, chatID string, text string) error
}
