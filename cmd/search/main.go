package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/physical-ai-textbook/textbook-search/internal/config"
	"github.com/physical-ai-textbook/textbook-search/internal/index"
	"github.com/physical-ai-textbook/textbook-search/internal/loader"
	"github.com/physical-ai-textbook/textbook-search/internal/logging"
	"github.com/physical-ai-textbook/textbook-search/internal/search"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	location   string
	logLevel   string
	jsonOut    bool
}

type queryOptions struct {
	limit   int
	fuzzy   float64
	types   []string
	modules []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalOptions

	root := &cobra.Command{
		Use:           "search",
		Short:         "Query a textbook search index from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", config.DefaultPath(), "Path to config JSON")
	pf.StringVar(&g.location, "index", "", "Index location: file, .db mirror or http(s) URL")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&g.jsonOut, "json", false, "Print JSON instead of text")

	root.AddCommand(newQueryCmd(&g), newSuggestCmd(&g), newInfoCmd(&g))
	return root
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Rank documents for a query",
		Long: `Rank documents for a query.

Examples:
  search query "inverse kinematics"
  search query robtics --fuzzy 0.5 --limit 3
  search query sensors --type chapter --module module-01-foundations`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context(), g)
			if err != nil {
				return err
			}
			searchOpts := search.Options{
				Query:   strings.Join(args, " "),
				Modules: opts.modules,
			}
			if cmd.Flags().Changed("limit") {
				searchOpts = searchOpts.WithLimit(opts.limit)
			}
			if cmd.Flags().Changed("fuzzy") {
				searchOpts = searchOpts.WithFuzzyThreshold(opts.fuzzy)
			}
			for _, t := range opts.types {
				searchOpts.Types = append(searchOpts.Types, index.DocType(strings.ToLower(t)))
			}
			results, err := engine.Search(searchOpts)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	f.Float64Var(&opts.fuzzy, "fuzzy", 0, "Fuzzy similarity threshold in [0,1] (default from config)")
	f.StringSliceVarP(&opts.types, "type", "t", nil, "Restrict to document types (repeatable)")
	f.StringSliceVarP(&opts.modules, "module", "m", nil, "Restrict to modules (repeatable)")
	return cmd
}

func newSuggestCmd(g *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Complete a partially typed query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(cmd.Context(), g)
			if err != nil {
				return err
			}
			suggestions, err := engine.Suggestions(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), suggestions)
			}
			for _, s := range suggestions {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of suggestions (0 = engine default)")
	return cmd
}

func newInfoCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show index metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := openEngine(cmd.Context(), g)
			if err != nil {
				return err
			}
			meta := engine.Metadata()
			if g.jsonOut {
				return writeJSON(cmd.OutOrStdout(), meta)
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "documents:    %d\n", meta.TotalDocuments)
			_, _ = fmt.Fprintf(w, "last updated: %s\n", meta.LastUpdated.Format("2006-01-02 15:04:05 MST"))
			if meta.BuildID != "" {
				_, _ = fmt.Fprintf(w, "build id:     %s\n", meta.BuildID)
			}
			_, _ = fmt.Fprintf(w, "modules:      %s\n", strings.Join(meta.Modules, ", "))
			return nil
		},
	}
}

// openEngine loads the index strictly: a command line user asked for this
// index, so a load failure is reported instead of searching an empty one.
func openEngine(ctx context.Context, g *globalOptions) (*search.Engine, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.BuildLogger(g.logLevel)

	location := g.location
	if location == "" {
		location = cfg.IndexPath()
	}
	idx, err := (&loader.Loader{Logger: logger}).Open(ctx, location)
	if err != nil {
		return nil, err
	}
	if idx.Repaired {
		logger.Warn("index metadata was inconsistent and has been recomputed", slog.String("location", location))
	}
	return search.New(idx, cfg.Search)
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No results.")
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "%d. %s [%s, %s] score %.2f\n", i+1, r.Title, r.Type, r.Module, r.Score)
		_, _ = fmt.Fprintf(w, "   %s\n", r.URL)
		for _, h := range r.Highlights {
			_, _ = fmt.Fprintf(w, "   %s\n", h)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
