// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent is published after a record has been durably created.
	CreatedEvent EventType = "created"
	// LoggedEvent is published for every written log entry.
	LoggedEvent EventType = "logged"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// Next waits for the next event on ch.
// ok is false when ch is closed or ctx is done first.
func Next[T any](ctx context.Context, ch <-chan Event[T]) (event Event[T], ok bool) {
	select {
	case event, ok = <-ch:
		return event, ok
	case <-ctx.Done():
		return Event[T]{}, false
	}
}
