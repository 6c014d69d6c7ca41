package sink

import (
	"context"
	"errors"

	"honeypot/internal/domain"
	"honeypot/internal/usecase/report"
)

// ChannelSink posts the text report to a channel through the session the
// event arrived on.
type ChannelSink struct {
	channelID string
}

// NewChannelSink creates a sink for one notify channel.
func NewChannelSink(channelID string) *ChannelSink {
	return &ChannelSink{channelID: channelID}
}

// ChannelSinks builds one ChannelSink per id, in order.
func ChannelSinks(ids []string) []domain.Sink {
	sinks := make([]domain.Sink, 0, len(ids))
	for _, id := range ids {
		sinks = append(sinks, NewChannelSink(id))
	}
	return sinks
}

func (c *ChannelSink) Kind() domain.SinkKind { return domain.SinkKindChannel }
func (c *ChannelSink) Target() string        { return c.channelID }

// Deliver resolves the channel through sess and sends the text report.
// Unknown and non-text channels are reported with their sentinel errors so
// the caller can flag them for operator attention.
func (c *ChannelSink) Deliver(ctx context.Context, sess domain.Session, r domain.Report) error {
	if sess == nil {
		return domain.NewSubSystemError("channel", "ChannelSink.Deliver", domain.ErrSessionNotReady, c.channelID)
	}

	info, err := sess.FetchChannel(ctx, c.channelID)
	if err != nil {
		if errors.Is(err, domain.ErrChannelUnknown) {
			return err
		}
		return domain.NewSubSystemError("channel", "ChannelSink.FetchChannel", domain.ErrDeliveryFailed, err.Error())
	}
	if !info.Text {
		return domain.NewDomainError("ChannelSink.Deliver", domain.ErrChannelNotText, c.channelID)
	}

	if err := sess.SendText(ctx, c.channelID, report.Text(r)); err != nil {
		return domain.NewSubSystemError("channel", "ChannelSink.SendText", domain.ErrDeliveryFailed, err.Error())
	}
	return nil
}

var _ domain.Sink = (*ChannelSink)(nil)
