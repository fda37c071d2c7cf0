package observability

import (
	"context"
)

// EventBus publishes request lifecycle events as structured log entries.
// It implements the domain EventPublisher interface.
type EventBus struct{}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Publish publishes an event with the given type and data. Context fields
// (trace, request, provider, model) are attached automatically.
func (e *EventBus) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	fields := make([]Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, Any(k, v))
	}

	FromContext(ctx).Info(eventType, fields...)
}
