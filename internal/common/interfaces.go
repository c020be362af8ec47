package common

import "context"

// EventHandler consumes connection events. It is called synchronously on the
// goroutine running the client loop.
type EventHandler func(evt Event)

// EventStore persists event records (Redis list in production)
type EventStore interface {
	PushEvent(ctx context.Context, key string, v interface{}) error
}
