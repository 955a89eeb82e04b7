package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/report"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/searcher"
)

type findOptions struct {
	reportPath string
	plain      bool
}

func newFindCmd(a *app) *cobra.Command {
	var opts findOptions
	cmd := &cobra.Command{
		Use:   "find <keywords...>",
		Short: "Rank indexed articles against keywords",
		Long: `Find scores every article against the keywords, prints the best
matches and writes them as a JSON array to the report file.

Examples:
  pubmedsearch find lactose intolerance
  pubmedsearch find "vitamin d deficiency" --report results.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFind(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "report file (default from config)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print without colors")
	return cmd
}

func (a *app) runFind(ctx context.Context, cmd *cobra.Command, keywords string, opts findOptions) error {
	r, err := a.openStore()
	if err != nil {
		return err
	}
	defer r.Close()

	s := searcher.New(r, searcher.Options{
		TopK:            a.cfg.Search.TopK,
		TimeoutPerIndex: a.cfg.Search.TimeoutPerIndex,
	})
	res, err := s.Query(ctx, keywords)
	if err != nil {
		return err
	}

	path := opts.reportPath
	if path == "" {
		path = a.cfg.Search.ReportPath
	}
	if err := report.WriteFile(path, res.Entries); err != nil {
		return err
	}

	styles := report.DefaultStyles()
	if opts.plain || os.Getenv("NO_COLOR") != "" {
		styles = report.PlainStyles()
	}
	return report.Render(cmd.OutOrStdout(), res, styles)
}
