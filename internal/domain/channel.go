package domain

import (
	"context"
	"time"
)

// SinkKind identifies the notification sink variant.
type SinkKind string

const (
	SinkKindChannel SinkKind = "channel"
	SinkKindWebhook SinkKind = "webhook"
)

// Report is the notification built once per qualifying event and handed to
// every configured sink.
type Report struct {
	EventID   string
	Kind      EventKind
	Change    RelationshipChange
	User      User
	Honeypot  User
	Info      string
	Timestamp time.Time
}

// EmbedField is a single name/value pair of an Embed.
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Embed is the rich rendering of a Report used by webhook sinks.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Fields      []EmbedField `json:"fields"`
	Timestamp   time.Time    `json:"timestamp"`
	Color       int          `json:"color"`
}

// Sink delivers a Report to one destination.
type Sink interface {
	Kind() SinkKind
	// Target identifies the destination in logs (channel id or redacted URL).
	Target() string
	// Deliver makes a single attempt. sess is the session the event came from;
	// session-independent sinks ignore it.
	Deliver(ctx context.Context, sess Session, r Report) error
}
