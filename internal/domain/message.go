package domain

import "time"

// EventKind identifies what happened to a honeypot account.
type EventKind string

const (
	EventKindMessage      EventKind = "MESSAGE"
	EventKindRelationship EventKind = "RELATIONSHIP"
)

// RelationshipChange is the subtype of a relationship event.
type RelationshipChange string

const (
	RelationshipAdded   RelationshipChange = "Added"
	RelationshipRemoved RelationshipChange = "Removed"
	RelationshipUpdated RelationshipChange = "Updated"
)

// User is a fully resolved platform user.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Name returns the display name, falling back to the username and then the id.
func (u User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return u.Username
	default:
		return u.ID
	}
}

// Mention returns the platform mention markup for the user.
func (u User) Mention() string { return "<@" + u.ID + ">" }

// UserRef references the acting user of an event. Either only ID is set
// (the user still has to be resolved) or User carries the full identity.
type UserRef struct {
	ID   string
	User *User
}

// RefByID returns a bare reference that must be resolved before use.
func RefByID(id string) UserRef { return UserRef{ID: id} }

// RefToUser returns an already resolved reference.
func RefToUser(u User) UserRef { return UserRef{ID: u.ID, User: &u} }

// Resolved reports whether the reference already carries a full identity.
func (r UserRef) Resolved() bool { return r.User != nil }

// Attachment is a decorative media item (a sticker) attached to a message.
type Attachment struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// InboundEvent is a message or relationship change observed on a session.
// Message fields are zero for relationship events and vice versa.
type InboundEvent struct {
	ID         string
	Kind       EventKind
	Actor      UserRef
	ReceivedAt time.Time

	// Message events.
	ChannelID   string
	Direct      bool
	Content     string
	Attachments []Attachment

	// Relationship events.
	Change       RelationshipChange
	ShouldNotify bool
}
