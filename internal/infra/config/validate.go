package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	return validate(cfg, &ValidationError{})
}

// validate appends the problems found in cfg to those already in ve.
func validate(cfg *Config, ve *ValidationError) error {
	validateHoneypot(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateStatus(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateHoneypot(cfg *Config, ve *ValidationError) {
	h := cfg.Honeypot
	if len(h.Tokens) == 0 {
		ve.Add("honeypot.tokens must not be empty (set HONEYPOT_TOKEN)")
	}

	mode, ok := ParseMode(string(h.Mode))
	if !ok {
		ve.Add("honeypot.mode %q is invalid (want: DM_NOTIFY, WEBHOOK; set HONEYPOT_MODE)", h.Mode)
		return
	}

	switch mode {
	case ModeDMNotify:
		if len(h.NotifyChannelIDs) == 0 {
			ve.Add("honeypot.notify_channel_ids must not be empty in DM_NOTIFY mode (set HONEYPOT_NOTIFY_CHANNEL_IDS)")
		}
	case ModeWebhook:
		if len(h.WebhookURLs) == 0 {
			ve.Add("honeypot.webhook_urls must not be empty in WEBHOOK mode (set HONEYPOT_WEBHOOK_URL)")
		}
		for i, raw := range h.WebhookURLs {
			if err := validateWebhookURL(raw); err != nil {
				ve.Add("honeypot.webhook_urls[%d]: %v", i, err)
			}
		}
		if h.Webhook.Timeout <= 0 {
			ve.Add("honeypot.webhook.timeout must be > 0")
		}
	}

	if b := h.Webhook.Breaker; b.MaxFailures > 0 && b.Timeout <= 0 {
		ve.Add("honeypot.webhook.breaker.timeout must be > 0 when the breaker is enabled")
	}
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

var (
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats   = map[string]bool{"text": true, "json": true}
	validExporters = map[string]bool{"noop": true, "stdout": true, "": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}

func validateStatus(cfg *Config, ve *ValidationError) {
	if !cfg.Status.Enabled {
		return
	}
	if _, err := cron.ParseStandard(cfg.Status.Schedule); err == nil {
		return
	}
	if d, err := time.ParseDuration(cfg.Status.Schedule); err != nil || d <= 0 {
		ve.Add("status.schedule %q is invalid (want: cron expression, @every descriptor or positive duration)", cfg.Status.Schedule)
	}
}
