package discord

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/discordgo"

	"honeypot/internal/domain"
)

const stickerCDN = "https://cdn.discordapp.com/stickers/"

// stickerFormatGIF is the animated GIF sticker format.
const stickerFormatGIF discordgo.StickerFormat = 4

// Gateway dispatch names for relationship changes.
const (
	eventRelationshipAdd    = "RELATIONSHIP_ADD"
	eventRelationshipRemove = "RELATIONSHIP_REMOVE"
	eventRelationshipUpdate = "RELATIONSHIP_UPDATE"
)

var relationshipChanges = map[string]domain.RelationshipChange{
	eventRelationshipAdd:    domain.RelationshipAdded,
	eventRelationshipRemove: domain.RelationshipRemoved,
	eventRelationshipUpdate: domain.RelationshipUpdated,
}

func toUser(u *discordgo.User) domain.User {
	if u == nil {
		return domain.User{}
	}
	display := u.GlobalName
	if display == "" {
		display = u.Username
	}
	return domain.User{ID: u.ID, Username: u.Username, DisplayName: display}
}

func receivedAt(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

// messageEvent converts a gateway message. The author is already a full
// identity, so the reference is resolved.
func messageEvent(m *discordgo.Message, direct bool, at time.Time) domain.InboundEvent {
	return domain.InboundEvent{
		Kind:        domain.EventKindMessage,
		Actor:       domain.RefToUser(toUser(m.Author)),
		ReceivedAt:  at,
		ChannelID:   m.ChannelID,
		Direct:      direct,
		Content:     m.Content,
		Attachments: stickerAttachments(m.StickerItems),
	}
}

func stickerAttachments(items []*discordgo.StickerItem) []domain.Attachment {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, domain.Attachment{Name: it.Name, ID: it.ID, URL: stickerURL(it)})
	}
	return out
}

// stickerURL returns the CDN URL of a sticker for its format.
func stickerURL(it *discordgo.StickerItem) string {
	ext := "png"
	switch it.FormatType {
	case discordgo.StickerFormatTypeLottie:
		ext = "json"
	case stickerFormatGIF:
		ext = "gif"
	}
	return stickerCDN + it.ID + "." + ext
}

type relationshipPayload struct {
	ID           string `json:"id"`
	ShouldNotify bool   `json:"should_notify"`
	User         *struct {
		ID string `json:"id"`
	} `json:"user"`
}

// decodeRelationship extracts a relationship change from a raw dispatch.
// The acting user is returned as a bare id reference.
func decodeRelationship(e *discordgo.Event) (domain.InboundEvent, bool) {
	if e == nil {
		return domain.InboundEvent{}, false
	}
	change, ok := relationshipChanges[e.Type]
	if !ok {
		return domain.InboundEvent{}, false
	}

	var p relationshipPayload
	if err := json.Unmarshal(e.RawData, &p); err != nil {
		return domain.InboundEvent{}, false
	}
	id := p.ID
	if id == "" && p.User != nil {
		id = p.User.ID
	}
	if id == "" {
		return domain.InboundEvent{}, false
	}

	return domain.InboundEvent{
		Kind:         domain.EventKindRelationship,
		Actor:        domain.RefByID(id),
		Change:       change,
		ShouldNotify: p.ShouldNotify,
	}, true
}

// isTextChannel reports whether messages can be posted to a channel type.
func isTextChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeDM,
		discordgo.ChannelTypeGroupDM,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	default:
		return false
	}
}
