// Package transport declares the capability interface every chat surface
// (Telegram, console) implements: send, edit, delete, poll, operating on
// opaque MessageRef handles and RenderedMessage payloads produced by
// internal/presenter.
package transport

import "context"

// MessageRef is a transport-agnostic handle to a previously sent message.
type MessageRef struct {
	ThreadID  string
	MessageID string
}

// RenderedMessage is the opaque output of the presenter: text plus a flag
// telling the transport whether it is pre-rendered HTML (Telegram HTML
// parse mode) or should be sent as plain text.
type RenderedMessage struct {
	Text string
	HTML bool
}

// Inbound is one incoming chat message, normalized across transports.
type Inbound struct {
	ThreadID  string
	Text      string
	ReplyTo   *MessageRef
	ReplyText string
}

// Transport is the capability interface consumed by the handler and
// scheduler. Implementations must be safe for concurrent use. Neither the
// Telegram nor the console implementation rate-limits its calls; progress
// edits are paced by the edits worker, and sends are not paced.
type Transport interface {
	Send(ctx context.Context, threadID string, msg RenderedMessage) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg RenderedMessage) error
	Delete(ctx context.Context, ref MessageRef) error
	Poll(ctx context.Context) (<-chan Inbound, error)
}
