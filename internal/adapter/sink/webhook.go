package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"

	"honeypot/internal/domain"
	"honeypot/internal/usecase/report"
)

// WebhookKind is the transport selected for a webhook URL.
type WebhookKind string

const (
	WebhookDiscord WebhookKind = "discord"
	WebhookSlack   WebhookKind = "slack"
	WebhookGeneric WebhookKind = "generic"
)

var discordWebhookRe = regexp.MustCompile(`^https://(?:(?:canary|ptb)\.)?discord(?:app)?\.com/api(?:/v\d+)?/webhooks/(\d+)/([\w-]+)/?(?:\?.*)?$`)

// ClassifyWebhookURL reports which transport serves raw.
func ClassifyWebhookURL(raw string) WebhookKind {
	if discordWebhookRe.MatchString(raw) {
		return WebhookDiscord
	}
	if u, err := url.Parse(raw); err == nil && strings.EqualFold(u.Hostname(), "hooks.slack.com") {
		return WebhookSlack
	}
	return WebhookGeneric
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient overrides the HTTP client used for delivery.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookSink) { w.client = c }
}

// WebhookSink posts the embed report to one webhook URL. It does not depend
// on the originating session.
type WebhookSink struct {
	url    string
	kind   WebhookKind
	client *http.Client

	// Discord webhook transport.
	discord      *discordgo.Session
	webhookID    string
	webhookToken string
}

// NewWebhookSink creates a sink for url with the given request timeout.
func NewWebhookSink(rawURL string, timeout time.Duration, opts ...WebhookOption) (*WebhookSink, error) {
	w := &WebhookSink{
		url:    rawURL,
		kind:   ClassifyWebhookURL(rawURL),
		client: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(w)
	}

	if w.kind == WebhookDiscord {
		m := discordWebhookRe.FindStringSubmatch(rawURL)
		w.webhookID, w.webhookToken = m[1], m[2]
		// Webhook execution authenticates with the URL token; no account
		// credential is attached.
		dg, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("webhook sink: %w", err)
		}
		dg.Client = w.client
		w.discord = dg
	}
	return w, nil
}

// WebhookSinks builds one WebhookSink per URL, in order.
func WebhookSinks(urls []string, timeout time.Duration, opts ...WebhookOption) ([]domain.Sink, error) {
	sinks := make([]domain.Sink, 0, len(urls))
	for _, u := range urls {
		s, err := NewWebhookSink(u, timeout, opts...)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func (w *WebhookSink) Kind() domain.SinkKind { return domain.SinkKindWebhook }

// Target returns the URL with its secret parts masked.
func (w *WebhookSink) Target() string { return RedactURL(w.url) }

// WebhookKind reports the transport used by this sink.
func (w *WebhookSink) WebhookKind() WebhookKind { return w.kind }

// Deliver sends the embed rendering of r.
func (w *WebhookSink) Deliver(ctx context.Context, _ domain.Session, r domain.Report) error {
	embed := report.Embed(r)

	var err error
	switch w.kind {
	case WebhookDiscord:
		err = w.deliverDiscord(ctx, embed)
	case WebhookSlack:
		err = w.deliverSlack(ctx, embed)
	default:
		err = w.deliverGeneric(ctx, embed)
	}
	if err != nil {
		return w.classify(err)
	}
	return nil
}

func (w *WebhookSink) deliverDiscord(ctx context.Context, e domain.Embed) error {
	_, err := w.discord.WebhookExecute(w.webhookID, w.webhookToken, false,
		webhookParams(e), discordgo.WithContext(ctx))
	return err
}

func (w *WebhookSink) deliverSlack(ctx context.Context, e domain.Embed) error {
	return slack.PostWebhookCustomHTTPContext(ctx, w.url, w.client, slackMessage(e))
}

func (w *WebhookSink) deliverGeneric(ctx context.Context, e domain.Embed) error {
	body, err := json.Marshal(webhookParams(e))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook responded %d: %s", e.code, e.body)
}

// classify maps transport errors to domain errors. Rejections of the URL
// itself (unknown or revoked webhook) are reported as permission errors.
func (w *WebhookSink) classify(err error) error {
	status := 0
	var rest *discordgo.RESTError
	var slackErr slack.StatusCodeError
	var se *statusError
	switch {
	case errors.As(err, &rest) && rest.Response != nil:
		status = rest.Response.StatusCode
	case errors.As(err, &slackErr):
		status = slackErr.Code
	case errors.As(err, &se):
		status = se.code
	}

	sentinel := domain.ErrDeliveryFailed
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		sentinel = domain.ErrPermissionDenied
	}
	return domain.NewSubSystemError("webhook", "WebhookSink.Deliver", sentinel,
		fmt.Sprintf("%s: %v", w.Target(), redactTransportError(err)))
}

// redactTransportError masks the request URL that net/http embeds in
// transport failures.
func redactTransportError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = RedactURL(ue.URL)
	}
	return err
}

func webhookParams(e domain.Embed) *discordgo.WebhookParams {
	fields := make([]*discordgo.MessageEmbedField, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	return &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       e.Title,
			Description: e.Description,
			Fields:      fields,
			Timestamp:   e.Timestamp.UTC().Format(time.RFC3339),
			Color:       e.Color,
		}},
	}
}

func slackMessage(e domain.Embed) *slack.WebhookMessage {
	fields := make([]slack.AttachmentField, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, slack.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Name != "Info",
		})
	}
	return &slack.WebhookMessage{
		Text: e.Title,
		Attachments: []slack.Attachment{{
			Color:  fmt.Sprintf("#%06X", e.Color),
			Title:  e.Title,
			Text:   e.Description,
			Fields: fields,
			Ts:     json.Number(fmt.Sprintf("%d", e.Timestamp.Unix())),
		}},
	}
}

// RedactURL masks the secret parts of a webhook URL for logging: the token
// segment of Discord webhooks, the path of Slack webhooks and the query of
// anything else.
func RedactURL(raw string) string {
	if m := discordWebhookRe.FindStringSubmatchIndex(raw); m != nil {
		return raw[:m[4]] + "***" + raw[m[5]:]
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if strings.EqualFold(u.Hostname(), "hooks.slack.com") {
		return u.Scheme + "://" + u.Host + "/***"
	}
	if u.RawQuery != "" {
		u.RawQuery = "***"
	}
	u.User = nil
	return u.String()
}

var _ domain.Sink = (*WebhookSink)(nil)
