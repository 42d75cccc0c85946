package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/physical-ai-textbook/textbook-search/internal/config"
	"github.com/physical-ai-textbook/textbook-search/internal/content"
	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/logging"
	"github.com/physical-ai-textbook/textbook-search/internal/pipeline"
	"github.com/physical-ai-textbook/textbook-search/internal/sitemap"
	"github.com/physical-ai-textbook/textbook-search/internal/storage"
)

// buildOptions holds CLI overrides for the config file.
type buildOptions struct {
	configPath string
	logLevel   string
	content    string
	output     string
	site       string
	rootModule string
	workers    int
	sqlite     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ingest",
		Short:         "Build the textbook search index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index the content tree and write the search artifacts",
		Long: `Walk the Markdown/MDX content tree, build the search index and write
search-index.json, its gzipped copy, the optional SQLite mirror and the
sitemaps into the output directory.

Examples:
  ingest build --content ./docs --output ./static
  ingest build --config textbook-search.json --sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.BuildLogger(opts.logLevel)
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				logger.Error("load config", "error", err)
				return err
			}
			if err := ingest(cmd.Context(), logger, cfg); err != nil {
				logger.Error("ingest failed", "error", err)
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to config JSON")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.content, "content", "", "Override the content directory")
	f.StringVar(&opts.output, "output", "", "Override the output directory")
	f.StringVar(&opts.site, "site", "", "Override the public site URL used in sitemaps")
	f.StringVar(&opts.rootModule, "root-module", "", "Module for files at the content root")
	f.IntVar(&opts.workers, "workers", 0, "Parallel parse workers (0 = GOMAXPROCS)")
	f.BoolVar(&opts.sqlite, "sqlite", false, "Also write a SQLite mirror of the index")
	return cmd
}

// resolveConfig reads the config file and applies flag overrides. A
// missing default config file is fine; an explicit --config must exist.
func resolveConfig(cmd *cobra.Command, opts buildOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadOrDefault(opts.configPath)
	}
	if err != nil {
		return nil, err
	}

	if opts.content != "" {
		cfg.ContentDir = opts.content
	}
	if opts.output != "" {
		cfg.OutputDir = opts.output
	}
	if opts.site != "" {
		cfg.Site = opts.site
	}
	if opts.rootModule != "" {
		cfg.RootModule = opts.rootModule
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = opts.workers
	}
	if opts.sqlite {
		cfg.SQLite = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ingest(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	sinks := []storage.Sink{storage.NewFSStorage(cfg.OutputDir, cfg.IndexFile)}
	if cfg.SQLite {
		store, err := storage.NewSQLiteStore(cfg.SQLitePath())
		if err != nil {
			return fmt.Errorf("open sqlite mirror: %w", err)
		}
		sinks = append(sinks, store)
	}

	var sitemapGen *sitemap.Generator
	if cfg.Site != "" {
		sitemapGen = &sitemap.Generator{
			Root:    cfg.OutputDir,
			SiteURL: cfg.SiteURL(),
			Logger:  logger,
		}
	} else {
		logger.Info("no site URL configured, skipping sitemaps")
	}

	runner := &pipeline.Runner{
		Reader: &content.Reader{
			Root:       cfg.ContentDir,
			BaseURL:    cfg.BaseURL,
			RootModule: cfg.RootModule,
			Logger:     logger,
		},
		Builder:          index.NewBuilder(),
		Sinks:            sinks,
		SitemapGenerator: sitemapGen,
		Lock:             storage.NewBuildLock(cfg.OutputDir),
		Logger:           logger,
		Workers:          cfg.Workers,
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("search index written",
		"path", cfg.IndexPath(),
		"documents", report.Documents,
		"drafts", report.Drafts,
		"modules", len(report.Modules),
		"build_id", report.BuildID,
		"duration", report.Duration,
	)
	return nil
}
