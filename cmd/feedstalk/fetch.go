package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/feedstalk/internal/pipeline"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

var (
	fetchFormat string
	fetchOutput string
	fetchSite   string
	fetchID     string
	fetchSave   bool
	fetchPlain  bool
	fetchRedact bool
	fetchSince  time.Duration
)

// findCmd creates the "find" subcommand.
func findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find [input]",
		Short: "Print the site and id owning an input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			// No store needed: ownership checks never fetch.
			cfg.Storage.URI = ""
			client, cleanup, err := newClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			site, id, ok := client.Find(args[0])
			if !ok {
				return fmt.Errorf("no site owns %q", args[0])
			}
			fmt.Printf("%s %s\n", site, id)
			return nil
		},
	}
}

// sitesCmd creates the "sites" subcommand.
func sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List supported sites in lookup order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			cfg.Storage.URI = ""
			client, cleanup, err := newClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, name := range client.Sites() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// fetchCmd creates the "fetch" subcommand.
func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [input]",
		Short: "Fetch the timeline behind an input and export it",
		Long: `Find the site owning the input, fetch its aggregate and write it in the
selected format. --site and --id skip the lookup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFetch,
	}

	cmd.Flags().StringVarP(&fetchFormat, "format", "f", "", "output format: json, jsonl, csv (default from config)")
	cmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file, - for stdout (default from config)")
	cmd.Flags().StringVar(&fetchSite, "site", "", "site name, bypasses input lookup")
	cmd.Flags().StringVar(&fetchID, "id", "", "site-scoped id, used with --site")
	cmd.Flags().BoolVar(&fetchSave, "save", false, "cache the aggregate in MongoDB (requires storage.uri)")
	cmd.Flags().BoolVar(&fetchPlain, "plain", false, "strip markup from post names and messages")
	cmd.Flags().BoolVar(&fetchRedact, "redact", false, "redact emails, phone numbers and card numbers from messages")
	cmd.Flags().DurationVar(&fetchSince, "since", 0, "drop posts older than this (e.g. 24h); undated posts are kept")

	return cmd
}

// runFetch executes the fetch command.
func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if fetchFormat != "" {
		cfg.Storage.Format = strings.ToLower(fetchFormat)
	}
	if fetchOutput != "" {
		cfg.Storage.OutputPath = fetchOutput
	}
	if fetchSave && cfg.Storage.URI == "" {
		return errors.New("--save requires storage.uri")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	site, id := fetchSite, fetchID
	switch {
	case site != "":
		if id == "" {
			return errors.New("--site requires --id")
		}
	case len(args) == 1:
		var ok bool
		site, id, ok = client.Find(args[0])
		if !ok {
			return fmt.Errorf("%w: no site owns %q: %w", types.ErrUnknownSite, args[0], types.ErrNotFound)
		}
	default:
		return errors.New("an input or --site/--id is required")
	}

	logger.Info("fetching", "site", site, "id", id)
	start := time.Now()

	user, err := client.User(ctx, site, id)
	if err != nil {
		return err
	}

	user, err = postPipeline(logger).Apply(user)
	if err != nil {
		return err
	}

	exporter, err := storage.OpenExporter(cfg.Storage.Format, cfg.Storage.OutputPath, logger)
	if err != nil {
		return err
	}
	if fetchSave {
		exporter = storage.NewMultiExporter([]storage.Exporter{
			exporter,
			storage.NewStoreExporter(ctx, client.Store()),
		}, logger)
	}

	exportErr := exporter.Export(site, user)
	if err := exporter.Close(); err != nil && exportErr == nil {
		exportErr = err
	}
	if exportErr != nil {
		return fmt.Errorf("export: %w", exportErr)
	}

	logger.Info("fetch complete",
		"site", site,
		"id", id,
		"posts", user.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"output", cfg.Storage.OutputPath,
	)
	client.LogSummary()
	return nil
}

// postPipeline builds the post-processing chain selected by the fetch flags.
func postPipeline(logger *slog.Logger) *pipeline.Pipeline {
	p := pipeline.New(logger)
	p.Use(&pipeline.TrimMiddleware{})
	p.Use(pipeline.NewDedupMiddleware())
	if fetchPlain {
		p.Use(pipeline.NewHTMLSanitizeMiddleware())
	}
	if fetchRedact {
		p.Use(pipeline.NewPIIRedactMiddleware(logger))
	}
	if fetchSince > 0 {
		p.Use(&pipeline.SinceMiddleware{Cutoff: time.Now().Add(-fetchSince)})
	}
	return p
}
