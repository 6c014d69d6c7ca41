package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"honeypot/internal/adapter/sink"
	"honeypot/internal/infra/config"
)

// gatewayAddr is dialed by the gateway reachability check.
var gatewayAddr = "gateway.discord.gg:443"

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func newDoctorCmd(cfgFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run health checks on the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(*cfgFlag)
			cfg, cfgErr := config.Load(path)
			return runDoctor(cmd.OutOrStdout(), cfg, []Check{
				{Name: "Config file", Fn: checkConfigFile(path, cfgErr)},
				{Name: "Tokens", Fn: checkTokens},
				{Name: "Sinks", Fn: checkSinks},
				{Name: "Status report", Fn: checkStatus},
				{Name: "Gateway", Fn: checkGateway},
			})
		},
	}
}

// runDoctor executes all checks and reports results to w.
func runDoctor(w io.Writer, cfg *config.Config, checks []Check) error {
	fmt.Fprintln(w, "honeypot doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

var notLoaded = CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}

// checkConfigFile reports whether the config loaded. A missing file is only
// a warning because the environment alone can configure the process.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Fix the listed problems in " + cfgPath + " or the HONEYPOT_* environment",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using environment only", cfgPath),
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("config loaded from %s", cfgPath)}
	}
}

// tokenShaped reports whether tok has the three dot-separated segments of an
// account token. The token itself is never printed.
func tokenShaped(tok string) bool {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func checkTokens(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	n := len(cfg.Honeypot.Tokens)
	if n == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: "no account tokens configured",
			Fix:     "Set honeypot.tokens or HONEYPOT_TOKEN (comma-separated)",
		}
	}

	var bad []string
	for i, tok := range cfg.Honeypot.Tokens {
		if !tokenShaped(tok) {
			bad = append(bad, fmt.Sprintf("session-%d", i+1))
		}
	}
	if len(bad) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%d token(s) configured; malformed: %s", n, strings.Join(bad, ", ")),
			Fix:     "Account tokens have three dot-separated parts",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%d token(s) configured", n)}
}

func checkSinks(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	h := cfg.Honeypot

	switch h.Mode {
	case config.ModeDMNotify:
		var bad []string
		for _, id := range h.NotifyChannelIDs {
			if _, err := strconv.ParseUint(id, 10, 64); err != nil {
				bad = append(bad, id)
			}
		}
		if len(bad) > 0 {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("channel ids are not numeric: %s", strings.Join(bad, ", ")),
				Fix:     "Copy channel ids with developer mode enabled",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("DM_NOTIFY to %d channel(s)", len(h.NotifyChannelIDs)),
		}

	case config.ModeWebhook:
		kinds := map[sink.WebhookKind]int{}
		for _, u := range h.WebhookURLs {
			kinds[sink.ClassifyWebhookURL(u)]++
		}
		msg := fmt.Sprintf("WEBHOOK to %d url(s): discord=%d slack=%d generic=%d",
			len(h.WebhookURLs), kinds[sink.WebhookDiscord], kinds[sink.WebhookSlack], kinds[sink.WebhookGeneric])
		if h.Webhook.Breaker.MaxFailures > 0 {
			msg += fmt.Sprintf(", breaker after %d failures", h.Webhook.Breaker.MaxFailures)
		}
		return CheckResult{Status: StatusPass, Message: msg}

	default:
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("unknown mode %q", h.Mode),
			Fix:     "Set honeypot.mode to DM_NOTIFY or WEBHOOK",
		}
	}
}

func checkStatus(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if !cfg.Status.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	return CheckResult{Status: StatusPass, Message: "schedule " + cfg.Status.Schedule}
}

// checkGateway verifies the gateway host is reachable.
func checkGateway(_ *config.Config) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", gatewayAddr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", gatewayAddr, err),
			Fix:     "Check network connectivity and firewall rules",
		}
	}
	conn.Close()
	return CheckResult{Status: StatusPass, Message: gatewayAddr + " reachable"}
}
