package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/feedstalk/internal/fetcher"
	"github.com/IshaanNene/feedstalk/internal/monitor"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

var (
	watchInterval time.Duration
	watchWebhook  string
)

// watchCmd creates the "watch" subcommand.
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [input...]",
		Short: "Re-fetch timelines on an interval and report new, edited and removed posts",
		Long: `Fetch each input now and then every --interval, diffing against the last
copy. Changes are printed to stdout as JSON lines and optionally POSTed to a
webhook. The last copy is kept in MongoDB when storage.uri is set, in memory
otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().DurationVarP(&watchInterval, "interval", "i", 15*time.Minute, "time between fetches")
	cmd.Flags().StringVar(&watchWebhook, "webhook", "", "URL receiving each batch of changes as JSON")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval <= 0 {
		return errors.New("--interval must be positive")
	}

	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store := client.Store()
	if store == nil {
		store = storage.NewMemoryStore()
	}

	notifier := monitor.NewNotifier(logger)
	notifier.AddChannel(monitor.NewWriterChannel(os.Stdout))
	if watchWebhook != "" {
		hook := fetcher.NewHTTPFetcher(cfg, nil, logger)
		defer hook.Close()
		notifier.AddChannel(&monitor.WebhookChannel{URL: watchWebhook, Fetcher: hook})
	}

	scheduler := monitor.NewScheduler(monitor.NewChangeDetector(store, logger), notifier, logger)
	for _, input := range args {
		site, id, ok := client.Find(input)
		if !ok {
			return fmt.Errorf("%w: no site owns %q: %w", types.ErrUnknownSite, input, types.ErrNotFound)
		}
		scheduler.Add(&monitor.Schedule{Site: site, ID: id, Interval: watchInterval})
	}

	scheduler.Run(ctx, client.User)
	client.LogSummary()
	return nil
}
