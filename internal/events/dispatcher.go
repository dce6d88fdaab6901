package events

import (
	"context"

	"go.uber.org/zap"

	"membership-service/internal/models"
	"membership-service/internal/observability"
)

const (
	eventType        = "membership_events"
	routingKeyPrefix = "membership."
)

// Broadcaster pushes events to websocket clients of a group.
type Broadcaster interface {
	BroadcastGroupEvent(event models.GroupEvent)
}

// Dispatcher fans committed group events out to websocket clients and the
// message bus.
type Dispatcher struct {
	hub Broadcaster
	log *zap.Logger
}

// NewDispatcher constructs a Dispatcher. hub may be nil.
func NewDispatcher(hub Broadcaster, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{hub: hub, log: log}
}

// Notify delivers event. Delivery failures are logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, event models.GroupEvent) {
	if d.hub != nil {
		d.hub.BroadcastGroupEvent(event)
	}

	headers := observability.BuildHeaders(
		observability.RequestIDFromContext(ctx),
		observability.TraceIDFromContext(ctx),
	)
	err := observability.PublishEvent(ctx, routingKeyPrefix+event.Type, observability.EventEnvelope{
		EventType: eventType,
		EventName: event.Type,
		Payload:   event,
	}, headers)
	if err != nil {
		d.log.Warn("publish group event",
			zap.String("type", event.Type),
			zap.String("group_id", event.GroupID),
			zap.Error(err),
		)
	}
}
