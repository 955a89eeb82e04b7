package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/postgres"
)

func newLedgerCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show the indexing ledger",
		Long: `Ledger prints how many documents ended in each status and lists the
most recent documents that were not written to every index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLedger(cmd.Context(), cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "incomplete documents to list")
	return cmd
}

func (a *app) runLedger(ctx context.Context, cmd *cobra.Command, limit int) error {
	if !a.cfg.Postgres.Enabled {
		return fmt.Errorf("ledger is disabled; set postgres.enabled or PS_POSTGRES_ENABLED")
	}
	pg, err := postgres.New(ctx, a.cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	l, err := ledger.Open(ctx, pg)
	if err != nil {
		return err
	}

	counts, err := l.Summary(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(out, "%-8s %d\n", s, counts[s])
	}

	entries, err := l.Incomplete(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\t%s\n", e.DocID, e.Status, strings.Join(e.FailedIndices, ","))
	}
	return nil
}
