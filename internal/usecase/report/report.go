// Package report turns a qualifying inbound event into the notification
// handed to sinks, and renders it for each sink kind.
package report

import (
	"fmt"
	"strings"
	"time"

	"honeypot/internal/domain"
)

const (
	// MaxContentLen bounds the message content carried in a report.
	MaxContentLen = 980
	// MaxTextLen is the platform limit on a plain message.
	MaxTextLen = 2000
	// MaxFieldLen is the platform limit on an embed field value.
	MaxFieldLen = 1024

	ColorMessage      = 0xFF0000
	ColorRelationship = 0xFFA500

	embedDescription = "A honeypot has detected a user interaction."
)

// New builds the report for ev. actor is the resolved acting user and
// honeypot the identity of the session the event arrived on.
func New(ev domain.InboundEvent, actor, honeypot domain.User, now time.Time) domain.Report {
	return domain.Report{
		EventID:   ev.ID,
		Kind:      ev.Kind,
		Change:    ev.Change,
		User:      actor,
		Honeypot:  honeypot,
		Info:      Info(ev),
		Timestamp: now,
	}
}

// Info returns the free-text description of ev.
func Info(ev domain.InboundEvent) string {
	if ev.Kind == domain.EventKindRelationship {
		return RelationshipInfo(ev.Change, ev.ShouldNotify)
	}
	return MessageInfo(ev.Content, ev.Attachments)
}

// MessageInfo appends attachment markers to content, truncates the result
// to MaxContentLen and wraps it in a code block.
func MessageInfo(content string, attachments []domain.Attachment) string {
	body := Truncate(AppendAttachments(content, attachments), MaxContentLen)
	return "Message content: \n```\n" + body + "\n```"
}

// AppendAttachments appends one inline marker per attachment, in order.
func AppendAttachments(content string, attachments []domain.Attachment) string {
	if len(attachments) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(content)
	for _, a := range attachments {
		fmt.Fprintf(&b, "\n<sticker:%s:%s:%s>", a.Name, a.ID, a.URL)
	}
	return b.String()
}

// RelationshipInfo describes a relationship change with the platform's
// advisory notify flag.
func RelationshipInfo(change domain.RelationshipChange, shouldNotify bool) string {
	return fmt.Sprintf("%s Relationship. (Should Notify: %t)", change, shouldNotify)
}

// Truncate cuts s to at most n runes. It never splits a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Identity renders a user as "<name> (<@id>)".
func Identity(u domain.User) string {
	return fmt.Sprintf("%s (%s)", u.Name(), u.Mention())
}

func action(r domain.Report) string {
	if r.Kind == domain.EventKindRelationship {
		return string(r.Change) + " a Relationship"
	}
	return "Sent a Message"
}

// Text renders r as Markdown for channel sinks, which cannot carry embeds
// when posted by a user account.
func Text(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# USER REPORT: %s\n", Identity(r.User))
	fmt.Fprintf(&b, "## %s\n", action(r))
	fmt.Fprintf(&b, "## Honeypot: %s\n", Identity(r.Honeypot))
	b.WriteString("### Info:\n")
	b.WriteString(r.Info)
	return Truncate(b.String(), MaxTextLen)
}

// Color returns the embed color for the event kind.
func Color(kind domain.EventKind) int {
	if kind == domain.EventKindRelationship {
		return ColorRelationship
	}
	return ColorMessage
}

// Embed renders r as a rich embed for webhook sinks.
func Embed(r domain.Report) domain.Embed {
	field := func(name, value string) domain.EmbedField {
		return domain.EmbedField{Name: name, Value: Truncate(value, MaxFieldLen)}
	}
	return domain.Embed{
		Title:       "User Report: " + r.User.Name(),
		Description: embedDescription,
		Fields: []domain.EmbedField{
			field("User", Identity(r.User)),
			field("Honeypot", Identity(r.Honeypot)),
			field("Type", string(r.Kind)),
			field("Info", r.Info),
		},
		Timestamp: r.Timestamp,
		Color:     Color(r.Kind),
	}
}
