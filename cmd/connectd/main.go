// Package main is the entry point for the connectd CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/graphrag/connectd/internal/config"
	"github.com/graphrag/connectd/internal/detect"
	"github.com/graphrag/connectd/internal/gateway"
	"github.com/graphrag/connectd/internal/ledger"
	"github.com/graphrag/connectd/internal/notify"
	"github.com/graphrag/connectd/internal/score"
	"github.com/graphrag/connectd/pkg/fact"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "connectd",
		Short:         "Connection detection and notification dispatch for knowledge bases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), serveCmd(), detectCmd(), channelsCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and registered scoring strategies",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("connectd %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Println("\nScoring strategies:")
			for _, name := range score.Names() {
				fmt.Printf("  %s\n", name)
			}
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detection and notification HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			detector, err := buildDetector(cfg, logger)
			if err != nil {
				return err
			}

			manager, led, err := buildManager(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := manager.Close(); err != nil {
					logger.Error("closing channels", "error", err)
				}
				if led != nil {
					_ = led.Close()
				}
			}()

			gwOpts := []gateway.Option{gateway.WithLogger(logger)}
			if led != nil {
				gwOpts = append(gwOpts, gateway.WithLedger(led))
			}
			gw, err := gateway.New(cfg.Gateway.Listen, detector, manager, gwOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := gw.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			return gw.Stop(context.Background())
		},
	}
}

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Run one detection pass over facts from a JSON file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var in io.Reader = os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var facts []fact.Fact
			if err := json.NewDecoder(in).Decode(&facts); err != nil {
				return fmt.Errorf("parsing facts: %w", err)
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			detector, err := buildDetector(cfg, logger)
			if err != nil {
				return err
			}

			corpus, _ := cmd.Flags().GetString("corpus")
			result := detector.Detect(cmd.Context(), facts, corpus, detect.Options{})
			if result.Status == fact.StatusFailed {
				return errors.New("detection failed")
			}

			if doNotify, _ := cmd.Flags().GetBool("notify"); doNotify {
				manager, led, err := buildManager(cfg, logger)
				if err != nil {
					return err
				}
				defer func() {
					_ = manager.Close()
					if led != nil {
						_ = led.Close()
					}
				}()

				report := manager.ProcessConnections(cmd.Context(), result.Connections)
				fmt.Fprintf(os.Stderr, "notifications: %s (%d sent)\n", report.Status, report.Sent)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().String("corpus", "", "Existing knowledge text to score facts against")
	cmd.Flags().Bool("notify", false, "Dispatch notifications for high relevance connections")
	return cmd
}

func channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Notification channel management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Health-check every configured channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			manager, led, err := buildManager(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				_ = manager.Close()
				if led != nil {
					_ = led.Close()
				}
			}()

			results := manager.TestAllChannels(cmd.Context())
			failed := false
			for _, name := range manager.Channels() {
				status := "ok"
				if !results[name] {
					status = "failed"
					failed = true
				}
				fmt.Printf("  %-10s %s\n", name, status)
			}
			if failed {
				return errors.New("one or more channels failed their health check")
			}
			return nil
		},
	})
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Configuration OK (%d channels, %d strategies)\n",
				len(cfg.Notifications.Channels), len(strategyNames(cfg)))
			return nil
		},
	})
	return cmd
}

// loadConfig loads the config named by --config, falls back to standard
// locations, and finally to built-in defaults when no file exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}
	if resolved, ok := resolveConfigPath(); ok {
		return config.Load(resolved)
	}
	return config.Default(), nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/connectd/connectd.yaml → ./connectd.yaml
func resolveConfigPath() (string, bool) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "connectd", "connectd.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "connectd", "connectd.yaml"))
	}

	candidates = append(candidates, "connectd.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func strategyNames(cfg *config.Config) []string {
	if len(cfg.Detection.Strategies) > 0 {
		return cfg.Detection.Strategies
	}
	return score.Names()
}

// buildDetector assembles a detector from configuration.
func buildDetector(cfg *config.Config, logger *slog.Logger) (*detect.Detector, error) {
	strategies, err := score.Resolve(strategyNames(cfg))
	if err != nil {
		return nil, err
	}

	return detect.NewDetector(strategies,
		detect.WithLogger(logger.With("component", "detect")),
		detect.WithThreshold(cfg.Detection.Threshold),
		detect.WithMaxConnections(cfg.Detection.MaxConnections),
		detect.WithCacheSize(cfg.Detection.CacheSize),
		detect.WithOrder(detect.Order(cfg.Detection.Order)),
	)
}

// buildManager assembles the notification manager and its channels from
// configuration. The returned ledger is nil when no ledger is configured.
func buildManager(cfg *config.Config, logger *slog.Logger) (*notify.Manager, *ledger.Ledger, error) {
	notifyLogger := logger.With("component", "notify")

	opts := []notify.ManagerOption{
		notify.WithManagerLogger(notifyLogger),
		notify.WithManagerThreshold(cfg.Notifications.Threshold),
	}

	var led *ledger.Ledger
	if cfg.Notifications.Ledger.Path != "" {
		var err error
		led, err = ledger.Open(cfg.Notifications.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, notify.WithRecorder(led))
	}

	manager, err := notify.NewManager(opts...)
	if err != nil {
		if led != nil {
			_ = led.Close()
		}
		return nil, nil, err
	}

	for _, name := range cfg.Notifications.Channels {
		var ch notify.Channel
		switch name {
		case "console":
			ch = notify.NewConsoleChannel(
				notify.WithConsoleColor(cfg.Notifications.Console.Color),
				notify.WithConsoleLogger(notifyLogger),
			)
		case "file":
			fc, err := notify.NewFileChannel(cfg.Notifications.File.Path,
				notify.WithMaxFileSize(cfg.Notifications.File.MaxSize),
				notify.WithFileLogger(notifyLogger),
			)
			if err != nil {
				_ = manager.Close()
				if led != nil {
					_ = led.Close()
				}
				return nil, nil, err
			}
			ch = fc
		case "webhook":
			ch = notify.NewWebhookChannel(cfg.Notifications.Webhook.URL,
				notify.WithWebhookTimeout(cfg.Notifications.Webhook.Timeout),
				notify.WithWebhookRetries(cfg.Notifications.Webhook.Retries),
				notify.WithWebhookLogger(notifyLogger),
			)
		default:
			_ = manager.Close()
			if led != nil {
				_ = led.Close()
			}
			return nil, nil, fmt.Errorf("unknown notification channel %q", name)
		}

		if err := manager.AddChannel(ch); err != nil {
			_ = manager.Close()
			if led != nil {
				_ = led.Close()
			}
			return nil, nil, err
		}
	}

	return manager, led, nil
}
