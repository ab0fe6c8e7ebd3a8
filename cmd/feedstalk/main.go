package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/pkg/feedstalk"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "feedstalk",
		Short: "feedstalk turns social pages into uniform timelines",
		Long: `feedstalk scrapes public groups, profiles, channels and searches from
several sites and returns them as one aggregate shape: a name, a URL and a
list of posts.

Supported inputs:
  facebook.com/groups/<id>       mobile group page
  leboncoin.fr/recherche?<query> classified ads search
  instagram.com/<username>       public profile
  youtube.com/channel/<id>       channel uploads
  custom:<definition id>         a stored selector definition`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(findCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(sitesCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feedstalk %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  User Agent:        %s\n", cfg.Fetcher.UserAgent)
			fmt.Printf("  Accept-Language:   %s\n", cfg.Fetcher.AcceptLanguage)
			fmt.Printf("  Follow Redirects:  %v (max %d)\n", cfg.Fetcher.FollowRedirects, cfg.Fetcher.MaxRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nSites:\n")
			fmt.Printf("  Facebook:          %s\n", cfg.Sites.FacebookURL)
			fmt.Printf("  Leboncoin:         %s\n", cfg.Sites.LeboncoinURL)
			fmt.Printf("  Instagram:         %s\n", cfg.Sites.InstagramURL)
			fmt.Printf("  Youtube:           %s\n", cfg.Sites.YoutubeURL)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  MongoDB:           %v\n", cfg.Storage.URI != "")
			fmt.Printf("  Database:          %s\n", cfg.Storage.Database)
			fmt.Printf("  Format:            %s\n", cfg.Storage.Format)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Listen:            %s:%d\n", cfg.API.Host, cfg.API.Port)
			fmt.Printf("  Metrics:           %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Path)
			return nil
		},
	}
}

// loadConfig reads and validates the configuration and builds the logger.
// The returned closer releases a log file, if one was opened.
func loadConfig() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	closer := func() {}
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}

// newClient builds the SDK client. When storage.uri is set it connects to
// MongoDB; the returned cleanup disconnects it.
func newClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*feedstalk.Client, func(), error) {
	opts := []feedstalk.Option{
		feedstalk.WithConfig(cfg),
		feedstalk.WithLogger(logger),
	}

	disconnect := func() {}
	if cfg.Storage.URI != "" {
		mc, err := storage.Connect(ctx, cfg.Storage.URI)
		if err != nil {
			return nil, nil, err
		}
		disconnect = func() {
			if err := mc.Disconnect(context.Background()); err != nil {
				logger.Warn("mongodb disconnect failed", "error", err)
			}
		}
		opts = append(opts, feedstalk.WithMongo(mc.Database(cfg.Storage.Database)))
		logger.Debug("mongodb connected", "database", cfg.Storage.Database)
	}

	client := feedstalk.New(opts...)
	return client, func() {
		client.Close()
		disconnect()
	}, nil
}
