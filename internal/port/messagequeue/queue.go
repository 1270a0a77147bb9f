// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// Every subscriber sees every message published after it subscribed.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects used by SiteForge.
const (
	// SubjectSitesChanged announces authoring changes to a tenant or its
	// content; receivers refresh the directory and drop cached entries.
	SubjectSitesChanged = "sites.changed"
	// SubjectDiagnosticsBlocks carries block diagnostics (unknown types,
	// absorbed malformations) for offline inspection.
	SubjectDiagnosticsBlocks = "diagnostics.blocks"
)
