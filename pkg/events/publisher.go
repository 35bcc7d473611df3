package events

import "context"

// EventPublisher receives one DispatchEvent per answered request.
type EventPublisher interface {
	PublishDispatched(ctx context.Context, event *DispatchEvent) error
}

// PublisherFunc lets an ordinary function act as an EventPublisher.
type PublisherFunc func(ctx context.Context, event *DispatchEvent) error

// PublishDispatched calls f.
func (f PublisherFunc) PublishDispatched(ctx context.Context, event *DispatchEvent) error {
	return f(ctx, event)
}

// NoOpPublisher drops every event. The server uses it when no COMMS publisher is configured.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishDispatched(context.Context, *DispatchEvent) error { return nil }

// NewCallbackPublisher wraps cb, mostly so tests can capture events.
func NewCallbackPublisher(cb func(ctx context.Context, event *DispatchEvent) error) PublisherFunc {
	return PublisherFunc(cb)
}
