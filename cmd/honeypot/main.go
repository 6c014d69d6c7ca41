package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"honeypot/internal/adapter/discord"
	"honeypot/internal/adapter/sink"
	"honeypot/internal/domain"
	"honeypot/internal/infra/config"
	"honeypot/internal/infra/logger"
	"honeypot/internal/infra/tracer"
	"honeypot/internal/usecase/eventbus"
	"honeypot/internal/usecase/router"
	"honeypot/internal/usecase/session"
	"honeypot/internal/usecase/status"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigPath = "honeypot.yaml"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFlag string

	root := &cobra.Command{
		Use:   "honeypot",
		Short: "Watch honeypot accounts and report who contacts them",
		Long: `honeypot connects one session per configured account token and reports
every direct message and relationship change to notify channels (DM_NOTIFY)
or webhooks (WEBHOOK).

Configuration is read from --config, $HONEYPOT_CONFIG or ./honeypot.yaml.
HONEYPOT_* environment variables override the file; a .env file is loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(cfgFlag))
		},
	}
	root.PersistentFlags().StringVar(&cfgFlag, "config", "", "config file path")

	root.AddCommand(
		newDoctorCmd(&cfgFlag),
		newEncryptCmd(),
		newVersionCmd(),
	)
	return root
}

// configPath resolves the config file: flag, then HONEYPOT_CONFIG, then default.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("HONEYPOT_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	bus := eventbus.New(log)
	defer bus.Close()

	sinks, err := buildSinks(cfg, log)
	if err != nil {
		return err
	}
	rt := router.New(sinks, bus, log)
	log.Info("notification sinks configured", "mode", string(cfg.Honeypot.Mode), "sinks", len(sinks))

	mgr, err := session.NewManager(cfg.Honeypot.Tokens, discord.NewFactory(log), rt.Route, bus, log)
	if err != nil {
		return err
	}

	if cfg.Status.Enabled {
		reporter := status.New(bus, mgr.Sessions, log)
		if err := reporter.Start(ctx, cfg.Status.Schedule); err != nil {
			return err
		}
		defer reporter.Stop()
	}

	mgr.Start(ctx)

	<-ctx.Done()
	log.Info("shutting down")
	if err := mgr.Close(); err != nil {
		log.Warn("error closing sessions", "error", err)
	}
	return nil
}

// buildSinks creates the notification sinks for the configured mode.
func buildSinks(cfg *config.Config, log *slog.Logger) ([]domain.Sink, error) {
	h := cfg.Honeypot
	switch h.Mode {
	case config.ModeDMNotify:
		return sink.ChannelSinks(h.NotifyChannelIDs), nil
	case config.ModeWebhook:
		sinks, err := sink.WebhookSinks(h.WebhookURLs, h.Webhook.Timeout)
		if err != nil {
			return nil, err
		}
		return sink.WithBreaker(sinks, h.Webhook.Breaker, log), nil
	default:
		return nil, domain.NewDomainError("buildSinks", domain.ErrInvalidInput, fmt.Sprintf("unsupported mode %q", h.Mode))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "honeypot", version)
		},
	}
}
