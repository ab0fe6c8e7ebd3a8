package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/feedstalk/internal/api"
)

var (
	serveHost string
	servePort int
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site registry over HTTP",
		Long: `Start the HTTP API:

  GET  /api/health
  GET  /api/sites
  GET  /api/find?input=<url>
  GET  /api/sites/{name}/{id}[?save=1]
  POST /api/preview            (site definition as JSON)
  GET  /metrics                (when metrics.enabled)`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := api.NewServer(cfg, client.Registry(), client.Store(), logger)
	err = srv.ListenAndServe(ctx)
	client.LogSummary()
	return err
}
