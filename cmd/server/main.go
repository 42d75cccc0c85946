package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/physical-ai-textbook/textbook-search/internal/config"
	"github.com/physical-ai-textbook/textbook-search/internal/logging"
	"github.com/physical-ai-textbook/textbook-search/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		addr       string
		location   string
		noWatch    bool
	)

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the textbook search API and static site",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOrDefault(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			logger := logging.BuildLogger(logLevel)

			if addr == "" {
				addr = cfg.Server.Addr
			}
			if location == "" {
				location = cfg.IndexPath()
			}

			ctx := cmd.Context()
			server := web.NewServer(cfg, location, logger)
			server.Reload(ctx)
			if !noWatch {
				go func() {
					if err := server.Watch(ctx); err != nil {
						logger.Warn("index hot reload disabled", "error", err)
					}
				}()
			}
			return server.ListenAndServe(ctx, addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", config.DefaultPath(), "Path to config JSON")
	f.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&addr, "addr", "", "HTTP bind address (default from config, :8080)")
	f.StringVar(&location, "index", "", "Index location: file, .db mirror or http(s) URL")
	f.BoolVar(&noWatch, "no-watch", false, "Do not reload the index when it is rebuilt")
	return cmd
}
