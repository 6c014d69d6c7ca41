package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"honeypot/internal/domain"
)

// Mode selects the notification sink kind for the whole process.
type Mode string

const (
	ModeDMNotify Mode = "DM_NOTIFY"
	ModeWebhook  Mode = "WEBHOOK"
)

// ParseMode normalizes a mode string. Matching is case-insensitive.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeDMNotify:
		return ModeDMNotify, true
	case ModeWebhook:
		return ModeWebhook, true
	default:
		return Mode(s), false
	}
}

// Config is the top-level application configuration.
type Config struct {
	// Includes lists further YAML files (globs allowed) merged before this one.
	Includes []string `yaml:"includes,omitempty"`

	Honeypot HoneypotConfig `yaml:"honeypot"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracer   TracerConfig   `yaml:"tracer"`
	Status   StatusConfig   `yaml:"status"`
}

// HoneypotConfig holds the monitored accounts and the notification sinks.
type HoneypotConfig struct {
	Tokens           []string      `yaml:"tokens"`
	Mode             Mode          `yaml:"mode"`
	NotifyChannelIDs []string      `yaml:"notify_channel_ids,omitempty"`
	WebhookURLs      []string      `yaml:"webhook_urls,omitempty"`
	Webhook          WebhookConfig `yaml:"webhook"`
}

// WebhookConfig holds webhook delivery settings.
type WebhookConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the per-sink circuit breaker. MaxFailures == 0 disables it.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// StatusConfig holds the periodic status report settings.
type StatusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression or "@every 1h"
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Honeypot: HoneypotConfig{
			Webhook: WebhookConfig{
				Timeout: 10 * time.Second,
				Breaker: BreakerConfig{
					MaxFailures: 0,
					Timeout:     60 * time.Second,
					Interval:    10 * time.Minute,
				},
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Status: StatusConfig{
			Enabled:  false,
			Schedule: "@every 1h",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Environment-only configuration.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Includes) > 0 {
			if err := mergeIncludes(cfg, absPath); err != nil {
				return nil, err
			}
			// Second pass so the main file wins over its includes.
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			cfg.Includes = nil
		}
	}

	envErrs := &ValidationError{}
	ApplyEnvOverrides(cfg, envErrs)
	normalize(cfg)

	if err := decryptSecrets(cfg, os.Getenv("HONEYPOT_CONFIG_KEY")); err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}

	if err := validate(cfg, envErrs); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps HONEYPOT_* env vars to config fields. A value that
// does not parse leaves the field unchanged and is recorded in ve.
func ApplyEnvOverrides(cfg *Config, ve *ValidationError) {
	if v := os.Getenv("HONEYPOT_TOKEN"); v != "" {
		cfg.Honeypot.Tokens = splitAndTrim(v, ",")
	}
	if v := os.Getenv("HONEYPOT_MODE"); v != "" {
		cfg.Honeypot.Mode = Mode(v)
	}
	if v := os.Getenv("HONEYPOT_NOTIFY_CHANNEL_IDS"); v != "" {
		cfg.Honeypot.NotifyChannelIDs = splitAndTrim(v, ",")
	}
	if v := os.Getenv("HONEYPOT_WEBHOOK_URL"); v != "" {
		cfg.Honeypot.WebhookURLs = splitAndTrim(v, ",")
	}
	if v := os.Getenv("HONEYPOT_WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Honeypot.Webhook.Timeout = d
		} else {
			ve.Add("HONEYPOT_WEBHOOK_TIMEOUT %q is not a duration (e.g. 10s)", v)
		}
	}
	if v := os.Getenv("HONEYPOT_BREAKER_MAX_FAILURES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Honeypot.Webhook.Breaker.MaxFailures = uint32(n)
		} else {
			ve.Add("HONEYPOT_BREAKER_MAX_FAILURES %q is not a non-negative integer", v)
		}
	}
	if v := os.Getenv("HONEYPOT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("HONEYPOT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("HONEYPOT_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("HONEYPOT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("HONEYPOT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("HONEYPOT_STATUS_SCHEDULE"); v != "" {
		cfg.Status.Enabled = true
		cfg.Status.Schedule = v
	}
}

// normalize drops empty list entries and canonicalizes the mode.
func normalize(cfg *Config) {
	h := &cfg.Honeypot
	h.Tokens = compact(h.Tokens)
	h.NotifyChannelIDs = compact(h.NotifyChannelIDs)
	h.WebhookURLs = compact(h.WebhookURLs)
	if m, ok := ParseMode(string(h.Mode)); ok {
		h.Mode = m
	}
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// decryptSecrets finds "enc:..." tokens and decrypts them with passphrase.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i, tok := range cfg.Honeypot.Tokens {
		if !strings.HasPrefix(tok, "enc:") {
			continue
		}
		if passphrase == "" {
			return domain.NewDomainError("config.decryptSecrets", domain.ErrDecryption,
				fmt.Sprintf("token %d is encrypted but HONEYPOT_CONFIG_KEY is not set", i+1))
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(tok, "enc:"), passphrase)
		if err != nil {
			return domain.NewDomainError("config.decryptSecrets", domain.ErrDecryption,
				fmt.Sprintf("token %d: %v", i+1, err))
		}
		cfg.Honeypot.Tokens[i] = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
// The file may hold account tokens.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
