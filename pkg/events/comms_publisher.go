package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/chat-worker/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// EventSubject overrides the base event subject (WORKER_EVENT_SUBJECT).
	EventSubject string
}

// CommsPublisher publishes dispatch events to COMMS, one subject per action.
type CommsPublisher struct {
	nc           *comms.Conn
	eventSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectEvents
	if opts != nil && opts.EventSubject != "" {
		subject = opts.EventSubject
	}
	return &CommsPublisher{nc: nc, eventSubject: subject}
}

// PublishDispatched publishes event on <base>.<action>.
func (p *CommsPublisher) PublishDispatched(_ context.Context, event *DispatchEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	subject := commsutil.BuildEventSubject(p.eventSubject, event.Action)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return fmt.Errorf("%s - publish %s: %w", commsPublisherLogPrefix, subject, err)
	}

	slog.Debug(fmt.Sprintf("%s - Published dispatch event %s on %s", commsPublisherLogPrefix, event.EventID, subject))
	return nil
}
