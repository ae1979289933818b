// Package notify delivers rendered notifications over the configured
// channels. Senders report failure without panicking; deciding whether a
// failure matters is the orchestrator's job, not theirs.
package notify

import "context"

// Message rendered notification content.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to one recipient address (email address or
// phone number, depending on the channel).
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}
