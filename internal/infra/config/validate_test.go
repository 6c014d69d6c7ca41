package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWebhookConfig() *Config {
	cfg := Defaults()
	cfg.Honeypot.Tokens = []string{"tok"}
	cfg.Honeypot.Mode = ModeWebhook
	cfg.Honeypot.WebhookURLs = []string{"https://discord.com/api/webhooks/1/abc"}
	return cfg
}

func validDMConfig() *Config {
	cfg := Defaults()
	cfg.Honeypot.Tokens = []string{"tok"}
	cfg.Honeypot.Mode = ModeDMNotify
	cfg.Honeypot.NotifyChannelIDs = []string{"C1"}
	return cfg
}

func validationErrors(t *testing.T, cfg *Config) []string {
	t.Helper()
	err := Validate(cfg)
	if err == nil {
		return nil
	}
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Errors
}

func TestValidateValidConfigs(t *testing.T) {
	assert.NoError(t, Validate(validWebhookConfig()))
	assert.NoError(t, Validate(validDMConfig()))
}

func TestValidateMissingTokens(t *testing.T) {
	cfg := validDMConfig()
	cfg.Honeypot.Tokens = nil
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "honeypot.tokens")
}

func TestValidateInvalidMode(t *testing.T) {
	cfg := validDMConfig()
	cfg.Honeypot.Mode = "SMS"
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "DM_NOTIFY, WEBHOOK")
}

func TestValidateLowercaseModeAccepted(t *testing.T) {
	cfg := validDMConfig()
	cfg.Honeypot.Mode = "dm_notify"
	assert.NoError(t, Validate(cfg))
}

func TestValidateDMNotifyRequiresChannels(t *testing.T) {
	cfg := validDMConfig()
	cfg.Honeypot.NotifyChannelIDs = nil
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "notify_channel_ids")
}

func TestValidateDMNotifyIgnoresWebhookURLs(t *testing.T) {
	cfg := validDMConfig()
	cfg.Honeypot.WebhookURLs = []string{"::not a url"}
	assert.NoError(t, Validate(cfg))
}

func TestValidateWebhookRequiresURLs(t *testing.T) {
	cfg := validWebhookConfig()
	cfg.Honeypot.WebhookURLs = nil
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "webhook_urls")
}

func TestValidateWebhookURLShape(t *testing.T) {
	cfg := validWebhookConfig()
	cfg.Honeypot.WebhookURLs = []string{
		"https://ok.example/hook",
		"ftp://example.com/hook",
		"https://",
	}
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "webhook_urls[1]")
	assert.Contains(t, errs[1], "webhook_urls[2]")
}

func TestValidateWebhookTimeout(t *testing.T) {
	cfg := validWebhookConfig()
	cfg.Honeypot.Webhook.Timeout = 0
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "webhook.timeout")
}

func TestValidateBreaker(t *testing.T) {
	cfg := validWebhookConfig()
	cfg.Honeypot.Webhook.Breaker.MaxFailures = 3
	cfg.Honeypot.Webhook.Breaker.Timeout = 0
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "breaker.timeout")
}

func TestValidateLogger(t *testing.T) {
	cfg := validDMConfig()
	cfg.Logger.Level = "loud"
	cfg.Logger.Format = "xml"
	errs := validationErrors(t, cfg)
	assert.Len(t, errs, 2)
}

func TestValidateTracer(t *testing.T) {
	cfg := validDMConfig()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "jaeger"
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "tracer.exporter")

	cfg.Tracer.Enabled = false
	assert.NoError(t, Validate(cfg))
}

func TestValidateStatusSchedule(t *testing.T) {
	cfg := validDMConfig()
	cfg.Status.Enabled = true
	cfg.Status.Schedule = "every now and then"
	errs := validationErrors(t, cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "status.schedule")

	cfg.Status.Schedule = "*/15 * * * *"
	assert.NoError(t, Validate(cfg))

	cfg.Status.Schedule = "45m"
	assert.NoError(t, Validate(cfg))

	cfg.Status.Schedule = "-1m"
	assert.Len(t, validationErrors(t, cfg), 1)
}

func TestValidationErrorAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Honeypot.Mode = "nope"
	cfg.Logger.Format = "xml"
	err := Validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "config validation failed:"))
	assert.Contains(t, msg, "honeypot.tokens")
	assert.Contains(t, msg, "honeypot.mode")
	assert.Contains(t, msg, "logger.format")
}
