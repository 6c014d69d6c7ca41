package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// Session lifecycle.
	EventSessionReady  EventType = "session.ready"
	EventSessionFailed EventType = "session.failed"
	EventSessionClosed EventType = "session.closed"

	// Routing.
	EventRouted     EventType = "event.routed"
	EventUnresolved EventType = "event.unresolved"
	EventRouteError EventType = "event.route_error"

	// Delivery.
	EventDeliverySucceeded EventType = "delivery.succeeded"
	EventDeliveryFailed    EventType = "delivery.failed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DeliveryPayload is the payload of delivery events.
type DeliveryPayload struct {
	EventID string    `json:"event_id"`
	Sink    SinkKind  `json:"sink"`
	Target  string    `json:"target"`
	Code    ErrorCode `json:"code,omitempty"`
}

// NewEvent builds an Event, encoding payload as JSON when non-nil.
func NewEvent(t EventType, sessionID string, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Emit builds an event for sessionID and publishes it.
	Emit(ctx context.Context, t EventType, sessionID string, payload any)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
